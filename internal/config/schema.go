// Package config loads quill's YAML configuration: file discovery,
// ${VAR} expansion, defaults and aggregated validation.
package config

import (
	"time"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/gateway"
	"github.com/flemzord/quill/internal/provider"
	"github.com/flemzord/quill/internal/tool/docs"
	"github.com/flemzord/quill/internal/tracing"
	"github.com/flemzord/quill/modules/provider/gemini"
	openaicompat "github.com/flemzord/quill/modules/provider/openai_compatible"
	"github.com/flemzord/quill/modules/session/sqlite"
)

// Supported values for the enumerated fields.
const (
	ProviderGemini           = "gemini"
	ProviderOpenAICompatible = "openai_compatible"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Only "1" is supported.
	Version string `yaml:"version"`

	Log       LogConfig                `yaml:"log"`
	Provider  ProviderConfig           `yaml:"provider"`
	Agent     agent.Config             `yaml:"agent"`
	Retry     provider.RetryConfig     `yaml:"retry"`
	RateLimit provider.RateLimitConfig `yaml:"rate_limit"`
	Tools     ToolsConfig              `yaml:"tools"`
	Sessions  SessionsConfig           `yaml:"sessions"`
	Gateway   gateway.Config           `yaml:"gateway"`
	Tracing   tracing.Config           `yaml:"tracing"`
	Cron      CronConfig               `yaml:"cron"`
	Audit     AuditConfig              `yaml:"audit"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ProviderConfig selects and configures the generation backend. Only the
// block matching Kind is read.
type ProviderConfig struct {
	Kind             string              `yaml:"kind"`
	Gemini           gemini.Config       `yaml:"gemini"`
	OpenAICompatible openaicompat.Config `yaml:"openai_compatible"`
}

// ToolsConfig configures the builtin tools. With no document service
// base_url, the document tools are not registered.
type ToolsConfig struct {
	DocumentService docs.Config `yaml:"document_service"`
}

// SessionsConfig selects the session store.
type SessionsConfig struct {
	Backend string `yaml:"backend"`
	// Timeout is the idle time after which a session is swept.
	Timeout time.Duration `yaml:"timeout"`
	SQLite  sqlite.Config `yaml:",inline"`
}

// CronConfig holds job schedules. An empty schedule disables the job.
type CronConfig struct {
	HealthReport  string `yaml:"health_report"`
	ProviderProbe string `yaml:"provider_probe"`
}

// AuditConfig enables the JSONL audit trail when Path is set.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Defaults fills unset enumerations and the defaults that are not owned
// by a component constructor.
func (c *Config) Defaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderGemini
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = BackendMemory
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = time.Second
	}
	c.Gateway.Defaults()
}

// Default returns a complete configuration that needs nothing but a
// GEMINI_API_KEY in the environment.
func Default() *Config {
	cfg := &Config{Cron: CronConfig{HealthReport: "*/5 * * * *"}}
	cfg.Defaults()
	return cfg
}
