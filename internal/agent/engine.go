package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/quill/internal/provider"
)

// Fixed texts of the forced final-answer step.
const (
	synthesisThought       = "Generating final answer based on previous reasoning and tool results."
	synthesisPlaceholder   = "Unable to generate final answer."
	synthesisFailedThought = "Failed to generate final answer."
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer overrides the tracer used for react.session and
// react.generate spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides time.Now for session and step timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs the bounded reasoning loop. It is safe for concurrent use;
// each Run owns its Session.
type Engine struct {
	provider     provider.Provider
	dispatcher   *Dispatcher
	config       Config
	systemPrompt string
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewEngine creates an Engine. The system prompt is rendered once from the
// dispatcher's tools, so the registry should be frozen beforehand.
func NewEngine(p provider.Provider, d *Dispatcher, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		provider:   p,
		dispatcher: d,
		config:     cfg.withDefaults(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(nopHandler{})
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(instrumentationName)
	}
	e.systemPrompt = BuildSystemPrompt(d.Tools())
	return e
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config { return e.config }

// ModelName returns the model identifier of the underlying provider.
func (e *Engine) ModelName() string { return e.provider.ModelName() }

// ToolNames returns the registered tool names, sorted.
func (e *Engine) ToolNames() []string {
	tools := e.dispatcher.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// NewSessionID returns a fresh "session_<uuid>" identifier.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

func (e *Engine) newSession(query, id string) *Session {
	if id == "" {
		id = NewSessionID()
	}
	return &Session{ID: id, Query: query, Start: e.now()}
}

// Run executes a full reasoning run. It never returns an error: failures,
// cancellation, and panics are recorded on the returned Session, whose End
// is always stamped.
func (e *Engine) Run(ctx context.Context, query, sessionID string) *Session {
	s := e.newSession(query, sessionID)
	_ = e.run(ctx, s, e.complete, nil)
	return s
}

// generateFunc produces the model text for one reasoning step.
type generateFunc func(ctx context.Context, prompt string, stepNumber int) (string, error)

// run drives s to completion. It returns a non-nil error only when the run
// was aborted by cancellation or a panic rather than ending on a step.
func (e *Engine) run(ctx context.Context, s *Session, gen generateFunc, emit emitter) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	ctx = WithSessionID(ctx, s.ID)
	ctx, span := e.tracer.Start(ctx, "react.session", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int("react.max_iterations", e.config.MaxIterations),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent: run panicked: %v", r)
			s.fail(err.Error())
			e.logger.Error("reasoning run panicked", "session_id", s.ID, "panic", r)
		}
		s.finish(e.now())
		span.SetAttributes(
			attribute.Bool("react.success", s.Success),
			attribute.Int("react.steps", len(s.Steps)),
			attribute.Int("react.tool_calls", s.TotalToolCalls),
		)
		if s.Error != nil {
			span.SetStatus(codes.Error, *s.Error)
		}
		e.logger.Info("reasoning run finished",
			"session_id", s.ID,
			"success", s.Success,
			"steps", len(s.Steps),
			"tool_calls", s.TotalToolCalls,
			"duration", s.Duration(),
		)
	}()

	e.logger.Info("reasoning run started", "session_id", s.ID, "query", Truncate(s.Query, 100))

	tr := newTranscript(e.systemPrompt, s.Query)
	for n := 1; n <= e.config.MaxIterations; n++ {
		if ctx.Err() != nil {
			return e.abort(s, ctx.Err())
		}
		emit.send(StreamEvent{Type: EventIterationStart, Iteration: n, MaxIterations: e.config.MaxIterations})

		step := e.step(ctx, tr, n, gen, emit)
		s.Steps = append(s.Steps, step)
		tr = tr.record(step)

		switch step.State {
		case StateCompleted:
			s.complete(deref(step.Observation))
			return nil
		case StateError:
			s.fail(deref(step.Observation))
			return nil
		}
	}

	if ctx.Err() != nil {
		return e.abort(s, ctx.Err())
	}
	emit.send(StreamEvent{Type: EventGeneratingFinalAnswer})

	final := e.synthesize(ctx, tr, len(s.Steps)+1)
	s.Steps = append(s.Steps, final)
	if final.State == StateError {
		s.fail(deref(final.Observation))
	} else {
		s.complete(deref(final.Observation))
	}
	return nil
}

func (e *Engine) abort(s *Session, err error) error {
	s.fail(err.Error())
	e.logger.Warn("reasoning run aborted", "session_id", s.ID, "error", err)
	return err
}

// step runs one Think/Act/Observe cycle.
func (e *Engine) step(ctx context.Context, tr transcript, n int, gen generateFunc, emit emitter) Step {
	emit.send(StreamEvent{Type: EventStepStart, StepNumber: n, State: StateThinking})

	text, err := gen(ctx, tr.stepPrompt(n), n)
	if err == nil && text == "" {
		err = provider.ErrEmptyResponse
	}
	if err != nil {
		e.logger.Warn("reasoning step failed", "session_id", SessionIDFrom(ctx), "step", n, "error", err)
		emit.send(StreamEvent{Type: EventStepError, StepNumber: n, Err: err.Error()})
		return Step{
			Number:      n,
			State:       StateError,
			Thought:     fmt.Sprintf("Error generating reasoning step: %v", err),
			Observation: ptr(fmt.Sprintf("Failed to process step %d: %v", n, err)),
			Timestamp:   e.now(),
		}
	}

	step := ParseStep(text, n)
	step.Timestamp = e.now()
	emit.send(StreamEvent{
		Type:       EventStepParsed,
		StepNumber: n,
		Thought:    step.Thought,
		Action:     clonePtr(step.Action),
		State:      step.State,
	})

	if needsDispatch(step) {
		emit.send(StreamEvent{Type: EventExecutingTools, StepNumber: n, Action: clonePtr(step.Action)})
		e.dispatcher.Execute(ctx, &step)
		if emit.active() {
			snap := step.clone()
			emit.send(StreamEvent{
				Type:        EventToolsExecuted,
				StepNumber:  n,
				ToolCalls:   snap.ToolCalls,
				Observation: snap.Observation,
			})
		}
	}

	if emit.active() {
		snap := step.clone()
		emit.send(StreamEvent{Type: EventStepComplete, StepNumber: n, Step: &snap})
	}
	return step
}

func needsDispatch(s Step) bool {
	return s.State != StateError &&
		s.Action != nil && *s.Action != "" &&
		!IsFinalAnswer(*s.Action)
}

// synthesize asks for a final answer once the iteration budget is spent.
func (e *Engine) synthesize(ctx context.Context, tr transcript, n int) Step {
	text, err := e.complete(ctx, tr.synthesisPrompt(), n)
	if err != nil && !errors.Is(err, provider.ErrEmptyResponse) {
		e.logger.Warn("final answer synthesis failed", "session_id", SessionIDFrom(ctx), "error", err)
		return Step{
			Number:      n,
			State:       StateError,
			Thought:     synthesisFailedThought,
			Observation: ptr(fmt.Sprintf("Error generating final answer: %v", err)),
			Timestamp:   e.now(),
		}
	}

	answer := strings.TrimSpace(text)
	if answer == "" {
		answer = synthesisPlaceholder
	}
	return Step{
		Number:      n,
		State:       StateCompleted,
		Thought:     synthesisThought,
		Action:      ptr(FinalAnswerMarker),
		Observation: &answer,
		Timestamp:   e.now(),
	}
}

// complete generates text with a single non-streaming call.
func (e *Engine) complete(ctx context.Context, prompt string, n int) (string, error) {
	ctx, span := e.tracer.Start(ctx, "react.generate", trace.WithAttributes(
		attribute.Int("react.step", n),
		attribute.Bool("react.stream", false),
	))
	defer span.End()

	resp, err := e.provider.Complete(ctx, e.request(prompt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return resp.Content, nil
}

func (e *Engine) request(prompt string) provider.CompletionRequest {
	return provider.CompletionRequest{
		Prompt:      prompt,
		Temperature: e.config.Temperature,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
