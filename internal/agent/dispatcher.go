package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/quill/internal/actionlang"
	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/tool"
)

const instrumentationName = "github.com/flemzord/quill/internal/agent"

type sessionIDKey struct{}

// WithSessionID returns a context carrying the session id, used to tag
// audit events and spans emitted while dispatching tool calls.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFrom returns the session id stored by WithSessionID.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithAuditLogger records every tool call and result.
func WithAuditLogger(a *security.AuditLogger) DispatcherOption {
	return func(d *Dispatcher) { d.audit = a }
}

// WithDispatcherTracer overrides the tracer used for tool.invoke spans.
func WithDispatcherTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// Dispatcher executes the tool calls named in a step's action against a
// closed registry. Calls run concurrently and fail independently.
type Dispatcher struct {
	registry *tool.Registry
	audit    *security.AuditLogger
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher over reg.
func NewDispatcher(reg *tool.Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(nopHandler{})
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(instrumentationName)
	}
	return d
}

// Tools returns the registered tools sorted by name.
func (d *Dispatcher) Tools() []tool.Tool {
	return d.registry.Tools()
}

// Execute parses step.Action, runs each call, and stores the records and
// the newline-joined observation on step. The step ends in the observing
// state unless it had already reached a terminal one.
func (d *Dispatcher) Execute(ctx context.Context, step *Step) {
	if step.Action == nil {
		return
	}
	action := *step.Action

	calls := actionlang.ParseCalls(action)
	if len(calls) == 0 {
		step.Observation = ptr("No valid tool calls found in action: " + action)
		step.advance(StateObserving)
		return
	}

	records := make([]ToolCall, len(calls))
	lines := make([]string, len(calls))
	ran := make([]bool, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		t, err := d.registry.Get(call.Name)
		if err != nil {
			// Unknown names only contribute an observation line. They are
			// not tool calls, so they never reach counts or metric labels.
			lines[i] = fmt.Sprintf("Error: Unknown tool '%s'", call.Name)
			d.logger.Warn("unknown tool requested", "tool", call.Name, "session_id", SessionIDFrom(ctx))
			d.auditResult(ctx, ToolCall{Name: call.Name, Error: ptr("unknown tool: " + call.Name)})
			continue
		}

		ran[i] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i], lines[i] = d.invoke(ctx, t, call)
		}()
	}
	wg.Wait()

	for i, rec := range records {
		if ran[i] {
			step.ToolCalls = append(step.ToolCalls, rec)
		}
	}
	step.Observation = ptr(strings.Join(lines, "\n"))
	step.advance(StateObserving)
}

// invoke runs one call. Errors, panics, and results carrying an "error" key
// all produce a failed record and a failure line.
func (d *Dispatcher) invoke(ctx context.Context, t tool.Tool, call actionlang.Call) (rec ToolCall, line string) {
	ctx, span := d.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("session.id", SessionIDFrom(ctx)),
	))
	defer span.End()

	rec = ToolCall{Name: call.Name, Arguments: call.Arguments, Timestamp: d.now()}
	d.auditCall(ctx, rec)

	fail := func(msg string) {
		rec.Success = false
		rec.Error = &msg
		line = fmt.Sprintf("Tool %s failed: %s", call.Name, msg)
		span.SetStatus(codes.Error, msg)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprintf("panic: %v", r))
		}
		rec.Duration = time.Since(start)
		span.SetAttributes(attribute.Bool("tool.success", rec.Success))
		d.logger.Debug("tool executed",
			"tool", call.Name,
			"session_id", SessionIDFrom(ctx),
			"success", rec.Success,
			"duration", rec.Duration,
		)
		d.auditResult(ctx, rec)
	}()

	result, err := t.Execute(ctx, call.Arguments)
	rec.Result = result
	switch {
	case err != nil:
		fail(err.Error())
	case result.Err() != "":
		fail(result.Err())
	default:
		rec.Success = true
		line = formatResult(t, result)
	}
	return rec, line
}

func (d *Dispatcher) auditCall(ctx context.Context, rec ToolCall) {
	if d.audit == nil {
		return
	}
	args, _ := json.Marshal(rec.Arguments)
	d.audit.Log(security.AuditEvent{
		Type:      security.EventToolCall,
		SessionID: SessionIDFrom(ctx),
		ToolName:  rec.Name,
		Detail:    string(args),
	})
}

func (d *Dispatcher) auditResult(ctx context.Context, rec ToolCall) {
	if d.audit == nil {
		return
	}
	ev := security.AuditEvent{
		Type:      security.EventToolResult,
		SessionID: SessionIDFrom(ctx),
		ToolName:  rec.Name,
		Metadata: map[string]string{
			"success":     strconv.FormatBool(rec.Success),
			"duration_ms": strconv.FormatInt(rec.Duration.Milliseconds(), 10),
		},
	}
	if rec.Error != nil {
		ev.Detail = *rec.Error
	}
	d.audit.Log(ev)
}
