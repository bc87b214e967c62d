package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/config"
	"github.com/flemzord/quill/internal/service"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "quill dev") {
		t.Errorf("output = %q", out)
	}
}

func TestInitThenCheck(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", config.FileName)

	out, err := execute(t, "init", "--yes", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Wrote") {
		t.Errorf("init output = %q", out)
	}

	if _, err := execute(t, "init", "--yes", path); err == nil {
		t.Error("second init without --force succeeded")
	}

	out, err = execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "provider: gemini") {
		t.Errorf("check output = %q", out)
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.FileName)
	if err := os.WriteFile(path, []byte("version: \"1\"\nsessions:\n  backend: redis\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "--config", path, "config", "check")
	if err == nil || !strings.Contains(err.Error(), "sessions.backend") {
		t.Fatalf("err = %v, want sessions.backend error", err)
	}
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	answer := "Rome."
	failure := "timeout"

	tests := []struct {
		name    string
		res     service.Result
		want    string
		wantErr bool
	}{
		{
			"success",
			service.Result{Success: true, Answer: &answer, DetailedReasoning: []service.StepBreakdown{{Step: 1, Thought: "easy"}}},
			"[step 1] easy\nRome.\n",
			false,
		},
		{"failure", service.Result{SessionID: "s1", Error: &failure}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := printResult(&buf, tt.res, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintStream(t *testing.T) {
	t.Parallel()

	answer := "Carthage."
	events := make(chan agent.StreamEvent, 4)
	events <- agent.StreamEvent{Type: agent.EventIterationStart, Iteration: 1, MaxIterations: 5}
	events <- agent.StreamEvent{Type: agent.EventThinking, Content: "Thought: hm"}
	events <- agent.StreamEvent{Type: agent.EventSessionComplete, Session: &agent.Session{FinalAnswer: &answer}}
	close(events)

	var buf bytes.Buffer
	if err := printStream(&buf, events, false); err != nil {
		t.Fatalf("printStream: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"iteration 1/5", "Thought: hm", "Carthage."} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	failed := make(chan agent.StreamEvent, 1)
	failed <- agent.StreamEvent{Type: agent.EventSessionError, SessionID: "s2", Err: "boom"}
	close(failed)
	if err := printStream(&bytes.Buffer{}, failed, true); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want session failure", err)
	}
}
