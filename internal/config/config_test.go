package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/quill/internal/gateway"
	"github.com/flemzord/quill/internal/tracing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("QUILL_TEST_KEY", "abc")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"set", "key: ${QUILL_TEST_KEY}", "key: abc", ""},
		{"default unused", "key: ${QUILL_TEST_KEY:-zzz}", "key: abc", ""},
		{"default used", "key: ${QUILL_TEST_MISSING:-zzz}", "key: zzz", ""},
		{"empty default", "key: ${QUILL_TEST_MISSING:-}", "key: ", ""},
		{"unresolved", "a: ${QUILL_TEST_MISSING}\nb: ${QUILL_TEST_OTHER}", "", "QUILL_TEST_OTHER"},
		{"no pattern", "key: $HOME", "key: $HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.in))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnv: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Setenv("QUILL_TEST_TOKEN", "s3cret")

	raw := `
version: "1"
provider:
  kind: openai_compatible
  openai_compatible:
    base_url: http://localhost:11434/v1
    model: llama3
    api_key: none
agent:
  max_iterations: 7
  temperature: 0.5
  timeout: 2m
sessions:
  backend: sqlite
  timeout: 30m
  path: /tmp/quill.db
gateway:
  bind: 0.0.0.0:9000
  auth:
    bearer_token: ${QUILL_TEST_TOKEN}
tracing:
  enabled: true
  endpoint: localhost:4318
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Provider.OpenAICompatible.Model != "llama3" {
		t.Errorf("model = %q", cfg.Provider.OpenAICompatible.Model)
	}
	if cfg.Agent.MaxIterations != 7 || *cfg.Agent.Temperature != 0.5 || cfg.Agent.Timeout != 2*time.Minute {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Sessions.SQLite.Path != "/tmp/quill.db" || cfg.Sessions.Timeout != 30*time.Minute {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if cfg.Gateway.Auth.BearerToken != "s3cret" {
		t.Errorf("bearer token = %q", cfg.Gateway.Auth.BearerToken)
	}
	if cfg.Log.Level != "info" || cfg.Retry.Attempts != 3 {
		t.Errorf("defaults not applied: log=%+v retry=%+v", cfg.Log, cfg.Retry)
	}
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("version: \"1\"\nprovder:\n  kind: gemini\n"))
	if err == nil || !strings.Contains(err.Error(), "provder") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("version: \"1\"\nlog:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

func TestFind(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := Find(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(FileName, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(); got != FileName {
		t.Errorf("Find = %q, want working directory file", got)
	}

	want := filepath.Join(xdg, "quill", FileName)
	if err := os.MkdirAll(filepath.Dir(want), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(); got != want {
		t.Errorf("Find = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"default", func(*Config) {}, nil},
		{"version", func(c *Config) { c.Version = "2" }, []string{"version"}},
		{"log", func(c *Config) { c.Log.Level = "trace"; c.Log.Format = "xml" }, []string{"log.level", "log.format"}},
		{"provider kind", func(c *Config) { c.Provider.Kind = "anthropic" }, []string{"provider.kind"}},
		{
			"openai compatible requirements",
			func(c *Config) { c.Provider.Kind = ProviderOpenAICompatible },
			[]string{"openai_compatible.base_url", "openai_compatible.model"},
		},
		{
			"agent ranges",
			func(c *Config) {
				temp := 3.0
				c.Agent.MaxIterations = -1
				c.Agent.Temperature = &temp
			},
			[]string{"agent.max_iterations", "agent.temperature"},
		},
		{"retry", func(c *Config) { c.Retry.Attempts = 0 }, []string{"retry.attempts"}},
		{"docs url", func(c *Config) { c.Tools.DocumentService.BaseURL = "not a url" }, []string{"document_service.base_url"}},
		{"backend", func(c *Config) { c.Sessions.Backend = "redis" }, []string{"sessions.backend"}},
		{"gateway", func(c *Config) { c.Gateway = gateway.Config{Bind: "nope"} }, []string{"gateway"}},
		{"tracing", func(c *Config) { c.Tracing = tracing.Config{Enabled: true} }, []string{"tracing"}},
		{"cron", func(c *Config) { c.Cron.ProviderProbe = "every minute" }, []string{"cron.provider_probe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate succeeded")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %q", err, w)
				}
			}
		})
	}
}

func TestStarter_RoundTrip(t *testing.T) {
	t.Setenv("QUILL_API_TOKEN", "tok")

	tests := []struct {
		name string
		opts StarterOptions
	}{
		{"defaults", StarterOptions{}},
		{"openai compatible sqlite", StarterOptions{
			Provider:    ProviderOpenAICompatible,
			BaseURL:     "http://localhost:11434/v1",
			Model:       "llama3",
			DocsURL:     "http://localhost:8000",
			Backend:     BackendSQLite,
			BearerToken: true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Starter(tt.opts)
			if err != nil {
				t.Fatalf("Starter: %v", err)
			}
			cfg, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse:\n%s\n%v", raw, err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate:\n%s\n%v", raw, err)
			}
			if tt.opts.BearerToken && cfg.Gateway.Auth.BearerToken != "tok" {
				t.Errorf("bearer token = %q", cfg.Gateway.Auth.BearerToken)
			}
		})
	}
}
