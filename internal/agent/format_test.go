package agent

import (
	"strings"
	"testing"

	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/tooltest"
)

func TestFormatResult(t *testing.T) {
	t.Parallel()

	plain := tooltest.SimpleTool("lookup", nil)
	got := formatResult(plain, tool.Result{"answer": 42})
	if got != `lookup completed successfully: {"answer":42}...` {
		t.Errorf("generic summary = %q", got)
	}

	summarizing := &tooltest.SummarizingTool{
		MockTool:      tooltest.SimpleTool("search_documents", nil),
		SummarizeFunc: func(r tool.Result) string { return "custom summary" },
	}
	if got := formatResult(summarizing, tool.Result{}); got != "custom summary" {
		t.Errorf("summarizer output = %q", got)
	}
}

func TestGenericSummaryTruncates(t *testing.T) {
	t.Parallel()

	got := genericSummary("big", tool.Result{"text": strings.Repeat("é", 500)})
	body := strings.TrimSuffix(strings.TrimPrefix(got, "big completed successfully: "), "...")
	if n := len([]rune(body)); n != genericPreviewLen {
		t.Errorf("preview length = %d runes, want %d", n, genericPreviewLen)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 4, "this..."},
		{"héllo wörld", 5, "héllo..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
