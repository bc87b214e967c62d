// Package actionlang parses the tool-call mini-language that models emit
// on an "Action:" line, e.g. search_documents(query="battle of hastings", limit=5).
//
// Grammar limitations: a call ends at the first closing parenthesis, so
// argument values cannot contain ")"; backslash-escaped quotes inside a
// quoted value are not recognised and terminate the value early.
package actionlang

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	callPattern = regexp.MustCompile(`(\w+)\s*\(\s*(.*?)\s*\)`)

	// Go's regexp has no backreferences, so the quoted forms are split per
	// quote character instead of matching (["'])(.*?)\2.
	argPattern = regexp.MustCompile(`(\w+)\s*=\s*(?:"([^"]*)"|'([^']*)'|(\w+))`)

	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Call is one parsed name(args...) occurrence.
type Call struct {
	Name      string
	Arguments map[string]any
}

// ParseCalls returns every call found in text, in order of appearance.
// It never fails: text without a recognisable call yields nil.
func ParseCalls(text string) []Call {
	matches := callPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]Call, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, Call{
			Name:      m[1],
			Arguments: ParseArguments(m[2]),
		})
	}
	return calls
}

// ParseArguments parses a comma-separated key=value list. Quoted values are
// kept verbatim; bare values go through Coerce. Repeated keys keep the last
// value. An unparseable list yields an empty, non-nil map.
func ParseArguments(list string) map[string]any {
	args := make(map[string]any)
	if strings.TrimSpace(list) == "" {
		return args
	}

	for _, m := range argPattern.FindAllStringSubmatchIndex(list, -1) {
		key := list[m[2]:m[3]]
		switch {
		case m[4] >= 0:
			args[key] = list[m[4]:m[5]]
		case m[6] >= 0:
			args[key] = list[m[6]:m[7]]
		case m[8] >= 0:
			args[key] = Coerce(list[m[8]:m[9]])
		}
	}
	return args
}

// Coerce converts a bare token by fixed precedence: true/false → bool,
// none → nil, all digits → int, anything else → the string itself.
func Coerce(token string) any {
	switch strings.ToLower(token) {
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	}
	if digitsPattern.MatchString(token) {
		if n, err := strconv.Atoi(token); err == nil {
			return n
		}
	}
	return token
}
