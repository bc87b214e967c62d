package agent

import (
	"strings"
	"testing"

	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/tooltest"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	search := tooltest.SimpleTool("search_documents", nil)
	search.DescriptionFunc = func() string { return "Search documents" }
	search.ParametersFunc = func() []string { return []string{"query", "document_ids (optional)"} }

	prompt := BuildSystemPrompt([]tool.Tool{search})

	want := "- search_documents: Search documents\n  Parameters: query, document_ids (optional)"
	if !strings.Contains(prompt, want) {
		t.Errorf("prompt missing tool line %q:\n%s", want, prompt)
	}
	for _, fragment := range []string{
		"Action: tool_name(parameter1=\"value1\", parameter2=\"value2\")",
		"Action: Final Answer\nObservation: [Your complete answer here]",
		"Begin your reasoning with \"Thought:\"",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	tr := newTranscript("SYS", "What is X?")
	tr = tr.record(Step{Number: 1, Thought: "look", Action: ptr("search_documents(query=\"X\")"), Observation: ptr("Found it")})
	tr = tr.record(Step{Number: 2, Thought: "only a thought"})

	wantStep := "SYS\nUser Query: What is X?\nStep 1:\nThought: look\nAction: search_documents(query=\"X\")\nObservation: Found it\nStep 2:\nThought: only a thought\n\nStep 3:\nThought:"
	if got := tr.stepPrompt(3); got != wantStep {
		t.Errorf("stepPrompt =\n%q\nwant\n%q", got, wantStep)
	}

	if got := tr.synthesisPrompt(); !strings.HasSuffix(got, "Thought: only a thought\n\n"+synthesisInstruction) {
		t.Errorf("synthesisPrompt suffix wrong: %q", got)
	}
}
