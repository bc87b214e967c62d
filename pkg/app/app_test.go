package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/quill/internal/config"
	"github.com/flemzord/quill/internal/provider/providertest"
	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/service"
	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/tooltest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Gateway.Bind = "127.0.0.1:0"
	cfg.Retry.Backoff = time.Millisecond
	cfg.Cron = config.CronConfig{}
	return cfg
}

func TestBuild_ProcessesQueries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Sessions.Backend = config.BackendSQLite
	cfg.Sessions.SQLite.Path = filepath.Join(dir, "sessions.db")
	cfg.Audit.Path = filepath.Join(dir, "audit.jsonl")

	p := providertest.Scripted(0,
		"Thought: search\nAction: search_documents(query=\"Carthage\")",
		"Thought: done\nAction: Final Answer\nObservation: Carthage fell in 146 BC.",
	)
	a, err := Build(context.Background(), cfg, Options{
		LogOutput: io.Discard,
		Provider:  p,
		Tools:     []tool.Tool{tooltest.SimpleTool("search_documents", tool.Result{"total_results": 1})},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	res, err := a.Service.Process(context.Background(), service.Request{Query: "When did Carthage fall?"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Success || res.Answer == nil || *res.Answer != "Carthage fell in 146 BC." {
		t.Fatalf("result = %+v", res)
	}
	if res.ToolCalls != 1 {
		t.Errorf("tool calls = %d, want 1", res.ToolCalls)
	}

	if _, err := a.Service.GetSession(context.Background(), res.SessionID); err != nil {
		t.Errorf("GetSession: %v", err)
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	raw, err := os.ReadFile(cfg.Audit.Path)
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	var types []security.EventType
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		var ev security.AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("audit line %q: %v", sc.Text(), err)
		}
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != security.EventToolCall || types[1] != security.EventToolResult {
		t.Errorf("audit events = %v, want [tool_call tool_result]", types)
	}
}

func TestBuild_MissingProviderKey(t *testing.T) {
	t.Setenv("QUILL_TEST_EMPTY_KEY", "")

	cfg := testConfig(t)
	cfg.Provider.Gemini.APIKeyEnv = "QUILL_TEST_EMPTY_KEY"
	if _, err := Build(context.Background(), cfg, Options{LogOutput: io.Discard}); err == nil {
		t.Fatal("Build succeeded without an API key")
	}
}

func TestBuild_DuplicateTool(t *testing.T) {
	t.Parallel()

	dup := tooltest.SimpleTool("lookup", nil)
	_, err := Build(context.Background(), testConfig(t), Options{
		LogOutput: io.Discard,
		Provider:  providertest.Scripted(0, "x"),
		Tools:     []tool.Tool{dup, dup},
	})
	if err == nil || !strings.Contains(err.Error(), "registering tool") {
		t.Fatalf("err = %v, want duplicate registration error", err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.LogConfig
		debug   bool
		jsonOut bool
	}{
		{"text info", config.LogConfig{Level: "info", Format: "text"}, false, false},
		{"json debug", config.LogConfig{Level: "debug", Format: "json"}, true, true},
		{"unknown level", config.LogConfig{Level: "loud"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewLogger(tt.cfg, &buf, security.NewRedactor("hunter2hunter2"))

			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}

			logger.Info("login", "password", "hunter2hunter2")
			out := buf.String()
			if strings.Contains(out, "hunter2hunter2") {
				t.Errorf("secret leaked: %s", out)
			}
			if tt.jsonOut != json.Valid(bytes.TrimSpace(buf.Bytes())) {
				t.Errorf("json output = %v for %q", !tt.jsonOut, out)
			}
		})
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Cron = config.CronConfig{HealthReport: "0 * * * *", ProviderProbe: "30 * * * *"}

	a, err := Build(context.Background(), cfg, Options{
		LogOutput: io.Discard,
		Provider:  providertest.Scripted(0, "Thought: t\nAction: Final Answer\nObservation: ok"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, func(addr string) { addrCh <- addr }) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway not ready")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics missing Go runtime collector")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
