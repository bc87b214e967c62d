package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/quill/internal/provider"
	"github.com/flemzord/quill/internal/provider/providertest"
	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/tooltest"
)

func collect(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func eventTypes(events []StreamEvent) []EventType {
	out := make([]EventType, 0, len(events))
	prev := EventType("")
	for _, ev := range events {
		// Collapse runs of thinking events.
		if ev.Type == EventThinking && prev == EventThinking {
			continue
		}
		out = append(out, ev.Type)
		prev = ev.Type
	}
	return out
}

func TestRunStream_EventOrder(t *testing.T) {
	t.Parallel()

	lookup := tooltest.SimpleTool("lookup", tool.Result{"hits": 2})
	p := providertest.Scripted(7,
		"Thought: look it up\nAction: lookup(query=\"x\")",
		"Thought: done\nAction: Final Answer\nObservation: found it",
	)
	e := newTestEngine(t, p, Config{}, lookup)

	events := collect(t, e.RunStream(context.Background(), "q", "session_s"))

	want := []EventType{
		EventSessionStart,
		EventIterationStart, EventStepStart, EventThinking, EventStepParsed,
		EventExecutingTools, EventToolsExecuted, EventStepComplete,
		EventIterationStart, EventStepStart, EventThinking, EventStepParsed, EventStepComplete,
		EventSessionComplete,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v\nwant     %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}

	for _, ev := range events {
		if ev.SessionID != "session_s" {
			t.Errorf("%s event session id = %q", ev.Type, ev.SessionID)
		}
	}

	last := events[len(events)-1]
	if last.Session == nil || !last.Session.Success || deref(last.Session.FinalAnswer) != "found it" {
		t.Errorf("terminal session = %+v", last.Session)
	}
	if last.Session.End == nil {
		t.Error("terminal snapshot has no End")
	}
	if p.StreamCalls != 2 || p.CompleteCalls != 0 {
		t.Errorf("stream=%d complete=%d, want 2 and 0", p.StreamCalls, p.CompleteCalls)
	}
}

func TestRunStream_ThinkingAccumulates(t *testing.T) {
	t.Parallel()

	text := "Thought: ok\nAction: Final Answer: yes"
	p := providertest.Scripted(4, text)
	e := newTestEngine(t, p, Config{})

	var thinking []StreamEvent
	for _, ev := range collect(t, e.RunStream(context.Background(), "q", "")) {
		if ev.Type == EventThinking {
			thinking = append(thinking, ev)
		}
	}

	if len(thinking) != (len(text)+3)/4 {
		t.Fatalf("thinking events = %d, want %d", len(thinking), (len(text)+3)/4)
	}
	var sb strings.Builder
	for _, ev := range thinking {
		sb.WriteString(ev.Content)
		if ev.FullContent != sb.String() {
			t.Fatalf("full_content = %q, want %q", ev.FullContent, sb.String())
		}
	}
	if thinking[len(thinking)-1].FullContent != text {
		t.Errorf("final full_content = %q", thinking[len(thinking)-1].FullContent)
	}
}

func TestRunStream_StepErrorEndsWithComplete(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{
		StreamFunc: func(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 2)
			ch <- provider.StreamChunk{Content: "Thought: par"}
			ch <- provider.StreamChunk{Err: errors.New("connection reset")}
			close(ch)
			return ch, nil
		},
	}
	e := newTestEngine(t, p, Config{})

	events := collect(t, e.RunStream(context.Background(), "q", ""))

	var sawStepError bool
	for _, ev := range events {
		if ev.Type == EventStepError {
			sawStepError = true
			if ev.Err != "connection reset" {
				t.Errorf("step_error = %q", ev.Err)
			}
		}
	}
	if !sawStepError {
		t.Error("no step_error event")
	}
	last := events[len(events)-1]
	if last.Type != EventSessionComplete || last.Session.Success {
		t.Errorf("last = %s success=%v, want failed session_complete", last.Type, last.Session.Success)
	}
}

func TestRunStream_CanceledEndsWithSessionError(t *testing.T) {
	t.Parallel()

	p := providertest.Scripted(0, "Thought: x")
	e := newTestEngine(t, p, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := collect(t, e.RunStream(ctx, "q", ""))

	last := events[len(events)-1]
	if last.Type != EventSessionError {
		t.Fatalf("last = %s, want session_error", last.Type)
	}
	if last.Err != context.Canceled.Error() {
		t.Errorf("Err = %q", last.Err)
	}
	if events[0].Type != EventSessionStart || events[0].Session == nil {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestRunStream_SynthesisEvent(t *testing.T) {
	t.Parallel()

	p := providertest.Scripted(0, "Thought: hmm", "Thought: still", "final words")
	e := newTestEngine(t, p, Config{MaxIterations: 2})

	events := collect(t, e.RunStream(context.Background(), "q", ""))

	got := eventTypes(events)
	if got[len(got)-2] != EventGeneratingFinalAnswer {
		t.Errorf("events = %v, want generating_final_answer before terminal", got)
	}
	last := events[len(events)-1]
	if deref(last.Session.FinalAnswer) != "final words" {
		t.Errorf("answer = %q", deref(last.Session.FinalAnswer))
	}
	// Synthesis goes through Complete even when streaming.
	if p.CompleteCalls != 1 || p.StreamCalls != 2 {
		t.Errorf("stream=%d complete=%d", p.StreamCalls, p.CompleteCalls)
	}
}

func TestRunStream_SnapshotsAreIndependent(t *testing.T) {
	t.Parallel()

	lookup := tooltest.SimpleTool("lookup", tool.Result{"n": 1})
	p := providertest.Scripted(0,
		"Thought: a\nAction: lookup(query=\"x\")",
		"Action: Final Answer\nObservation: ok",
	)
	e := newTestEngine(t, p, Config{}, lookup)

	events := collect(t, e.RunStream(context.Background(), "q", ""))

	var stepSnap *Step
	for _, ev := range events {
		if ev.Type == EventStepComplete && ev.StepNumber == 1 {
			stepSnap = ev.Step
		}
	}
	if stepSnap == nil {
		t.Fatal("no step_complete for step 1")
	}
	stepSnap.ToolCalls[0].Result["n"] = 99

	final := events[len(events)-1].Session
	if final.Steps[0].ToolCalls[0].Result["n"] != 1 {
		t.Error("step snapshot shares tool results with the session")
	}
}

func TestStreamEventMarshalJSON(t *testing.T) {
	t.Parallel()

	answer := "done"
	tests := []struct {
		name string
		ev   StreamEvent
		want map[string]any
		keys []string
	}{
		{
			name: "thinking",
			ev:   StreamEvent{Type: EventThinking, StepNumber: 2, Content: "b", FullContent: "ab"},
			keys: []string{"type", "step_number", "content", "full_content"},
			want: map[string]any{"type": "thinking", "content": "b", "full_content": "ab"},
		},
		{
			name: "iteration start",
			ev:   StreamEvent{Type: EventIterationStart, Iteration: 1, MaxIterations: 5},
			keys: []string{"type", "iteration", "max_iterations"},
		},
		{
			name: "tools executed without calls",
			ev:   StreamEvent{Type: EventToolsExecuted, StepNumber: 1},
			keys: []string{"type", "step_number", "tool_calls", "observation"},
		},
		{
			name: "session complete",
			ev:   StreamEvent{Type: EventSessionComplete, Session: &Session{ID: "s", Success: true, FinalAnswer: &answer}},
			keys: []string{"type", "session", "success", "final_answer", "error"},
			want: map[string]any{"success": true, "final_answer": "done", "error": nil},
		},
		{
			name: "session error",
			ev:   StreamEvent{Type: EventSessionError, SessionID: "s", Err: "boom"},
			keys: []string{"type", "error", "session_id"},
			want: map[string]any{"error": "boom", "session_id": "s"},
		},
		{
			name: "generating final answer",
			ev:   StreamEvent{Type: EventGeneratingFinalAnswer},
			keys: []string{"type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(got) != len(tt.keys) {
				t.Errorf("keys = %v, want %v", got, tt.keys)
			}
			for _, k := range tt.keys {
				if _, ok := got[k]; !ok {
					t.Errorf("missing key %q in %s", k, data)
				}
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestToolCallMarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(ToolCall{Name: "t", Duration: 1500 * time.Millisecond, Success: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["tool_name"] != "t" || got["execution_time"] != 1.5 {
		t.Errorf("got %s", data)
	}
	if _, ok := got["Duration"]; ok {
		t.Errorf("raw Duration leaked: %s", data)
	}

	data, _ = json.Marshal(ToolCall{Name: "never"})
	if !strings.Contains(string(data), `"execution_time":null`) {
		t.Errorf("zero duration = %s, want null execution_time", data)
	}
}

func TestToolCallJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := ToolCall{Name: "t", Arguments: map[string]any{"q": "x"}, Duration: 250 * time.Millisecond, Success: true}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out ToolCall
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Name != "t" || out.Duration != in.Duration || !out.Success || out.Arguments["q"] != "x" {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
