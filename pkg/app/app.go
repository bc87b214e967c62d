// Package app assembles quill from its configuration: logging, the
// provider chain, tools, the reasoning engine, session storage, and the
// service exposed by the CLI, the gateway and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/config"
	"github.com/flemzord/quill/internal/monitor"
	"github.com/flemzord/quill/internal/provider"
	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/service"
	"github.com/flemzord/quill/internal/session"
	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/docs"
	"github.com/flemzord/quill/internal/tracing"
	"github.com/flemzord/quill/modules/provider/gemini"
	openaicompat "github.com/flemzord/quill/modules/provider/openai_compatible"
	"github.com/flemzord/quill/modules/session/sqlite"
)

// Options tune Build beyond what the configuration file holds.
type Options struct {
	// Version is reported by the MCP server and the version command.
	Version string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Provider replaces the configured backend. The retry and rate limit
	// wrappers still apply.
	Provider provider.Provider

	// Tools are registered alongside the document tools.
	Tools []tool.Tool
}

// App holds the assembled components. Close releases them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Provider provider.Provider
	Service  *service.Service
	Store    session.Store
	Monitor  *monitor.Monitor
	Metrics  *prometheus.Registry
	Audit    *security.AuditLogger
	Version  string

	closers []func(context.Context) error
}

// Build wires every component described by cfg. cfg must be validated.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg, Version: opts.Version}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	redactor := security.NewRedactor(secrets(cfg)...)
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	a.Logger = NewLogger(cfg.Log, out, redactor)

	if err := a.openAudit(cfg.Audit, redactor); err != nil {
		return nil, err
	}

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("app: tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	base := opts.Provider
	if base == nil {
		if base, err = newProvider(cfg.Provider, a.Logger); err != nil {
			return nil, err
		}
	}
	a.Provider = provider.NewRetrying(
		provider.NewRateLimited(base, cfg.RateLimit),
		cfg.Retry,
		provider.WithLogger(a.Logger),
	)

	registry, err := a.buildTools(cfg.Tools, opts.Tools)
	if err != nil {
		return nil, err
	}

	dispatcher := agent.NewDispatcher(registry,
		agent.WithDispatcherLogger(a.Logger),
		agent.WithAuditLogger(a.Audit),
	)
	engine := agent.NewEngine(a.Provider, dispatcher, cfg.Agent, agent.WithLogger(a.Logger))

	if a.Store, err = a.openStore(ctx, cfg.Sessions); err != nil {
		return nil, err
	}

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := monitor.NewMetrics(a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	a.Monitor = monitor.New(monitor.WithMetrics(metrics))

	a.Service = service.New(engine, a.Store, a.Monitor, registry,
		service.WithLogger(a.Logger),
		service.WithSessionTimeout(cfg.Sessions.Timeout),
	)

	a.Logger.Info("quill assembled",
		"model", a.Provider.ModelName(),
		"tools", registry.Len(),
		"sessions", cfg.Sessions.Backend,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the process logger. Every record passes through the
// redactor before reaching w.
func NewLogger(cfg config.LogConfig, w io.Writer, redactor *security.Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(h, redactor))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// secrets collects the configured credentials so the redactor can mask
// them even when they do not match a known key pattern.
func secrets(cfg *config.Config) []string {
	candidates := []string{
		cfg.Provider.Gemini.APIKey,
		cfg.Provider.OpenAICompatible.APIKey,
		cfg.Tools.DocumentService.APIKey,
		cfg.Gateway.Auth.BearerToken,
		cfg.Gateway.Auth.BasicPass,
	}
	for _, env := range []string{cfg.Provider.Gemini.APIKeyEnv, cfg.Provider.OpenAICompatible.APIKeyEnv} {
		if env != "" {
			candidates = append(candidates, os.Getenv(env))
		}
	}

	var out []string
	for _, s := range candidates {
		if len(s) >= 8 {
			out = append(out, s)
		}
	}
	return out
}

func newProvider(cfg config.ProviderConfig, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderGemini:
		return gemini.New(cfg.Gemini, logger)
	case config.ProviderOpenAICompatible:
		return openaicompat.New(cfg.OpenAICompatible, logger)
	default:
		return nil, fmt.Errorf("app: unknown provider %q", cfg.Kind)
	}
}

func (a *App) buildTools(cfg config.ToolsConfig, extra []tool.Tool) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	if cfg.DocumentService.BaseURL != "" {
		client, err := docs.NewClient(cfg.DocumentService)
		if err != nil {
			return nil, fmt.Errorf("app: document service: %w", err)
		}
		if err := docs.Register(registry, client); err != nil {
			return nil, fmt.Errorf("app: registering document tools: %w", err)
		}
	} else {
		a.Logger.Warn("no document service configured, document tools disabled")
	}
	for _, t := range extra {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("app: registering tool: %w", err)
		}
	}
	registry.Freeze()
	return registry, nil
}

func (a *App) openStore(ctx context.Context, cfg config.SessionsConfig) (session.Store, error) {
	if cfg.Backend != config.BackendSQLite {
		return session.NewMemoryStore(), nil
	}
	store, err := sqlite.Open(ctx, cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("app: session store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	return store, nil
}

func (a *App) openAudit(cfg config.AuditConfig, redactor *security.Redactor) error {
	if cfg.Path == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("app: audit log: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return f.Close() })
	a.Audit = security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   f,
		Redactor: redactor,
	})
	return nil
}
