// Package service is the caller-facing layer over the reasoning engine. It
// validates requests, runs sessions, keeps them in a session.Store, feeds
// the monitor, and answers the administrative queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/monitor"
	"github.com/flemzord/quill/internal/session"
	"github.com/flemzord/quill/internal/tool"
)

// Errors returned by Service.
var (
	ErrInvalidRequest = errors.New("service: invalid request")

	// ErrSessionNotFound is session.ErrNotFound, re-exported for callers
	// that only import this package.
	ErrSessionNotFound = session.ErrNotFound
)

// Engine runs reasoning sessions. *agent.Engine implements it.
type Engine interface {
	Run(ctx context.Context, query, sessionID string) *agent.Session
	RunStream(ctx context.Context, query, sessionID string) <-chan agent.StreamEvent
	Config() agent.Config
	ModelName() string
	ToolNames() []string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSessionTimeout overrides the idle timeout used by the lazy sweep.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service is safe for concurrent use.
type Service struct {
	engine   Engine
	store    session.Store
	monitor  *monitor.Monitor
	registry *tool.Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// New wires a Service.
func New(engine Engine, store session.Store, mon *monitor.Monitor, registry *tool.Registry, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		store:    store,
		monitor:  mon,
		registry: registry,
		timeout:  session.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Validate checks the request fields.
func (r Request) Validate() error {
	n := utf8.RuneCountInString(r.Query)
	switch {
	case strings.TrimSpace(r.Query) == "":
		return fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	case n > MaxQueryLen:
		return fmt.Errorf("%w: query exceeds %d characters", ErrInvalidRequest, MaxQueryLen)
	}
	return nil
}

// Process runs a full session and returns its outcome. The only error is
// ErrInvalidRequest; engine failures are reported in the Result.
func (s *Service) Process(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	s.sweep(ctx)

	s.logger.Info("processing query", "session_id", req.SessionID, "query", agent.Truncate(req.Query, 100))
	sess := s.engine.Run(ctx, req.Query, req.SessionID)
	s.finish(ctx, sess)
	return newResult(sess), nil
}

// ProcessStream runs a session and relays its events. The returned channel
// is closed after the terminal event. The run is detached from ctx
// cancellation and bounded only by the engine timeout, so a consumer that
// goes away does not fail the session: undelivered events are dropped while
// the session still finishes, is stored, and is recorded by the monitor.
func (s *Service) ProcessStream(ctx context.Context, req Request) (<-chan agent.StreamEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.sweep(ctx)

	runCtx := context.WithoutCancel(ctx)
	events := s.engine.RunStream(runCtx, req.Query, req.SessionID)
	out := make(chan agent.StreamEvent, agent.StreamBuffer)

	go func() {
		defer close(out)

		var live *agent.Session
		for ev := range events {
			switch {
			case ev.Type == agent.EventSessionStart && ev.Session != nil:
				live = ev.Session.Clone()
				s.put(runCtx, live)
			case ev.Type == agent.EventStepComplete && ev.Step != nil && live != nil:
				live.Steps = append(live.Steps, *ev.Step)
				s.put(runCtx, live)
			case ev.Terminal() && ev.Session != nil:
				s.finish(runCtx, ev.Session)
			}

			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// finish records a finished session and stores it.
func (s *Service) finish(ctx context.Context, sess *agent.Session) {
	s.put(ctx, sess)
	s.monitor.Record(sess)
	s.logger.Info("query processed",
		"session_id", sess.ID,
		"success", sess.Success,
		"steps", len(sess.Steps),
		"tool_calls", sess.TotalToolCalls,
	)
}

func (s *Service) put(ctx context.Context, sess *agent.Session) {
	if err := s.store.Put(ctx, sess); err != nil {
		s.logger.Error("storing session failed", "session_id", sess.ID, "error", err)
	}
}

// sweep drops idle sessions. It runs before serving new work, never on a
// timer.
func (s *Service) sweep(ctx context.Context) {
	n, err := s.store.Sweep(ctx, s.timeout)
	if err != nil {
		s.logger.Warn("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
}

// ListSessions returns every retained session, most recent activity first.
func (s *Service) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	s.sweep(ctx)

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list sessions: %w", err)
	}
	out := make([]SessionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, SessionSummary{
			SessionID:    e.Session.ID,
			Query:        agent.Truncate(e.Session.Query, 100),
			Success:      e.Session.Success,
			ToolCalls:    e.Session.TotalToolCalls,
			SessionStart: e.Session.Start,
			LastActivity: e.LastActivity,
		})
	}
	return out, nil
}

// GetSession returns the full detail of one session, or ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, id string) (SessionDetail, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return SessionDetail{}, err
	}
	return newDetail(e.Session, e.LastActivity), nil
}

// DeleteSession removes one session, or returns ErrSessionNotFound.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session cleared", "session_id", id)
	return nil
}

// ClearSessions removes every session and returns how many were removed.
func (s *Service) ClearSessions(ctx context.Context) (int, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: clear sessions: %w", err)
	}
	s.logger.Info("sessions cleared", "count", n)
	return n, nil
}

// Monitoring returns health, statistics, and the static engine settings.
func (s *Service) Monitoring(ctx context.Context) (Monitoring, error) {
	active, err := s.store.Len(ctx)
	if err != nil {
		return Monitoring{}, fmt.Errorf("service: count sessions: %w", err)
	}

	cfg := s.engine.Config()
	var temperature float64
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return Monitoring{
		Health:         s.monitor.Health(),
		Statistics:     s.monitor.Stats(),
		ActiveSessions: active,
		AgentConfig: AgentConfig{
			Model:          s.engine.ModelName(),
			MaxIterations:  cfg.MaxIterations,
			Temperature:    temperature,
			AvailableTools: s.engine.ToolNames(),
		},
	}, nil
}

// Health returns the current health classification.
func (s *Service) Health() monitor.Health {
	return s.monitor.Health()
}

// Tools describes the registered tools.
func (s *Service) Tools() ToolListing {
	descs := s.registry.Descriptors()
	byName := make(map[string]tool.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}
	return ToolListing{
		TotalTools: len(descs),
		Tools:      byName,
		Categories: s.registry.Categories(),
	}
}
