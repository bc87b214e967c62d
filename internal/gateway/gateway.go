// Package gateway serves the reasoning service over HTTP: synchronous and
// streamed queries (SSE and WebSocket), session administration,
// monitoring, health and Prometheus metrics. It binds to loopback by
// default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// Service is what the gateway exposes. *service.Service implements it.
type Service interface {
	Process(ctx context.Context, req service.Request) (service.Result, error)
	ProcessStream(ctx context.Context, req service.Request) (<-chan agent.StreamEvent, error)
	ListSessions(ctx context.Context) ([]service.SessionSummary, error)
	GetSession(ctx context.Context, id string) (service.SessionDetail, error)
	DeleteSession(ctx context.Context, id string) error
	ClearSessions(ctx context.Context) (int, error)
	Monitoring(ctx context.Context) (service.Monitoring, error)
	Tools() service.ToolListing
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithAuditLogger records authentication outcomes, queries and session
// deletions.
func WithAuditLogger(a *security.AuditLogger) Option {
	return func(g *Gateway) { g.audit = a }
}

// WithMetrics serves reg at /metrics and instruments every request with
// collectors registered on it.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(g *Gateway) { g.registry = reg }
}

// Gateway is the HTTP front end.
type Gateway struct {
	config   Config
	svc      Service
	logger   *slog.Logger
	audit    *security.AuditLogger
	registry *prometheus.Registry
	metrics  *httpMetrics
	handler  http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New builds a Gateway. Zero config fields take their defaults.
func New(cfg Config, svc Service, opts ...Option) (*Gateway, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{config: cfg, svc: svc}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	if g.registry != nil {
		m, err := newHTTPMetrics(g.registry)
		if err != nil {
			return nil, err
		}
		g.metrics = m
	}
	g.handler = g.buildRouter()
	return g, nil
}

// Handler returns the routed handler, for embedding or tests.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server != nil {
		return errors.New("gateway: already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	g.listener = ln
	g.server = &http.Server{
		Handler:      g.handler,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	go func(srv *http.Server) {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}(g.server)
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener != nil {
		return g.listener.Addr().String()
	}
	return g.config.Bind
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return srv.Shutdown(shutdownCtx)
}
