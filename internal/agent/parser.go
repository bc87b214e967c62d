package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// FinalAnswerMarker is the action that ends a run with an answer.
const FinalAnswerMarker = "Final Answer"

// finalAnswerPlaceholder is used when a final answer carries no text.
const finalAnswerPlaceholder = "Final answer provided."

var (
	thoughtMarker     = regexp.MustCompile(`(?i)thought:\s*`)
	actionMarker      = regexp.MustCompile(`(?i)action:\s*`)
	observationMarker = regexp.MustCompile(`(?i)observation:\s*`)
	finalAnswerPrefix = regexp.MustCompile(`(?is)^final answer\s*:?\s*(.*)$`)
)

// ParseStep turns raw model output into step n. It never fails: text
// without markers becomes the thought, and an internal fault produces an
// error step instead of a panic.
func ParseStep(raw string, n int) (step Step) {
	defer func() {
		if r := recover(); r != nil {
			step = Step{
				Number:      n,
				State:       StateError,
				Thought:     fmt.Sprintf("Failed to parse response: %v", r),
				Observation: ptr(fmt.Sprintf("Parsing error: %v", r)),
			}
		}
	}()

	step = Step{Number: n, State: StateThinking}

	if thought, ok := segment(raw, thoughtMarker, actionMarker); ok {
		step.Thought = thought
	} else {
		step.Thought = raw
	}

	if action, ok := segment(raw, actionMarker, observationMarker); ok {
		step.Action = &action
		step.advance(StateActing)

		if IsFinalAnswer(action) {
			step.advance(StateCompleted)
			answer := finalAnswerPrefix.FindStringSubmatch(action)
			if len(answer) == 2 && strings.TrimSpace(answer[1]) != "" {
				step.Observation = ptr(strings.TrimSpace(answer[1]))
			}
		}
	}

	if step.Observation == nil {
		if obs, ok := segment(raw, observationMarker, nil); ok {
			step.Observation = &obs
			step.advance(StateObserving)
		}
	}

	if step.State == StateCompleted && deref(step.Observation) == "" {
		step.Observation = ptr(finalAnswerPlaceholder)
	}
	return step
}

// IsFinalAnswer reports whether an action text requests the final answer.
func IsFinalAnswer(action string) bool {
	return strings.HasPrefix(action, FinalAnswerMarker)
}

// segment returns the trimmed text between the first match of start and the
// next match of stop after it, or the end of text when stop is nil or
// absent.
func segment(text string, start, stop *regexp.Regexp) (string, bool) {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if stop != nil {
		if end := stop.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
	}
	return strings.TrimSpace(rest), true
}
