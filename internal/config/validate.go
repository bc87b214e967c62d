package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/flemzord/quill/internal/cron"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the whole configuration and reports every problem at
// once, joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Version != "1" {
		add("version: unsupported value %q (expected \"1\")", c.Version)
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		add("log.level: unknown level %q", c.Log.Level)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		add("log.format: unknown format %q", c.Log.Format)
	}

	switch c.Provider.Kind {
	case ProviderGemini, ProviderOpenAICompatible:
	default:
		add("provider.kind: unknown provider %q", c.Provider.Kind)
	}
	if c.Provider.Kind == ProviderOpenAICompatible {
		if c.Provider.OpenAICompatible.BaseURL == "" {
			add("provider.openai_compatible.base_url is required")
		}
		if c.Provider.OpenAICompatible.Model == "" {
			add("provider.openai_compatible.model is required")
		}
	}

	if c.Agent.MaxIterations < 0 {
		add("agent.max_iterations must be non-negative, got %d", c.Agent.MaxIterations)
	}
	if t := c.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("agent.temperature must be within [0, 2], got %g", *t)
	}
	if c.Agent.Timeout < 0 {
		add("agent.timeout must be non-negative")
	}

	if c.Retry.Attempts < 1 {
		add("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.Backoff < 0 {
		add("retry.backoff must be non-negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		add("rate_limit values must be non-negative")
	}

	if raw := c.Tools.DocumentService.BaseURL; raw != "" {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			add("tools.document_service.base_url: invalid URL %q", raw)
		}
	}

	switch c.Sessions.Backend {
	case BackendMemory, BackendSQLite:
	default:
		add("sessions.backend: unknown backend %q", c.Sessions.Backend)
	}
	if c.Sessions.Timeout < 0 {
		add("sessions.timeout must be non-negative")
	}
	if c.Sessions.SQLite.BusyTimeout < 0 {
		add("sessions.busy_timeout must be non-negative")
	}

	gw := c.Gateway
	gw.Defaults()
	if err := gw.Validate(); err != nil {
		add("gateway: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		add("tracing: %w", err)
	}

	schedules := []struct{ name, expr string }{
		{"health_report", c.Cron.HealthReport},
		{"provider_probe", c.Cron.ProviderProbe},
	}
	for _, s := range schedules {
		if s.expr == "" {
			continue
		}
		if err := cron.ValidateSchedule(s.expr); err != nil {
			add("cron.%s: %w", s.name, err)
		}
	}

	return errors.Join(errs...)
}
