package agent

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/flemzord/quill/internal/tool"
)

const genericPreviewLen = 300

// formatResult renders a successful tool result as an observation line.
// Tools implementing tool.Summarizer describe themselves; anything else
// gets a truncated JSON dump.
func formatResult(t tool.Tool, result tool.Result) string {
	if s, ok := t.(tool.Summarizer); ok {
		return s.Summarize(result)
	}
	return genericSummary(t.Name(), result)
}

func genericSummary(name string, result tool.Result) string {
	data, err := json.Marshal(result)
	text := string(data)
	if err != nil {
		text = fmt.Sprint(map[string]any(result))
	}
	return fmt.Sprintf("%s completed successfully: %s...", name, prefix(text, genericPreviewLen))
}

// Truncate shortens s to at most n runes, appending "..." when it cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return prefix(s, n) + "..."
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
