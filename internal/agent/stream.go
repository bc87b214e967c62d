package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StreamBuffer is the capacity of the RunStream event channel.
const StreamBuffer = 16

// EventType names a streaming progress event.
type EventType string

// Streaming event types, in the order a run can emit them.
const (
	EventSessionStart          EventType = "session_start"
	EventIterationStart        EventType = "iteration_start"
	EventStepStart             EventType = "step_start"
	EventThinking              EventType = "thinking"
	EventStepParsed            EventType = "step_parsed"
	EventExecutingTools        EventType = "executing_tools"
	EventToolsExecuted         EventType = "tools_executed"
	EventStepComplete          EventType = "step_complete"
	EventStepError             EventType = "step_error"
	EventGeneratingFinalAnswer EventType = "generating_final_answer"
	EventSessionComplete       EventType = "session_complete"
	EventSessionError          EventType = "session_error"
)

// StreamEvent is one progress event of a streaming run. Only the fields
// relevant to Type are set. Step, ToolCalls, and Session are snapshots
// owned by the receiver.
type StreamEvent struct {
	Type      EventType
	SessionID string
	Query     string
	Timestamp time.Time

	Iteration     int
	MaxIterations int

	StepNumber  int
	State       StepState
	Content     string
	FullContent string
	Thought     string
	Action      *string
	ToolCalls   []ToolCall
	Observation *string
	Step        *Step

	// Session is set on session_start and on both terminal events.
	Session *Session
	Err     string
}

// Terminal reports whether the event ends the stream.
func (ev StreamEvent) Terminal() bool {
	return ev.Type == EventSessionComplete || ev.Type == EventSessionError
}

// MarshalJSON renders the event in its wire shape: a "type" field plus
// the fields of that event type.
func (ev StreamEvent) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": ev.Type}
	switch ev.Type {
	case EventSessionStart:
		m["session_id"] = ev.SessionID
		m["query"] = ev.Query
		m["timestamp"] = ev.Timestamp
	case EventIterationStart:
		m["iteration"] = ev.Iteration
		m["max_iterations"] = ev.MaxIterations
	case EventStepStart:
		m["step_number"] = ev.StepNumber
		m["state"] = ev.State
	case EventThinking:
		m["step_number"] = ev.StepNumber
		m["content"] = ev.Content
		m["full_content"] = ev.FullContent
	case EventStepParsed:
		m["step_number"] = ev.StepNumber
		m["thought"] = ev.Thought
		m["action"] = ev.Action
		m["state"] = ev.State
	case EventExecutingTools:
		m["step_number"] = ev.StepNumber
		m["action"] = ev.Action
	case EventToolsExecuted:
		m["step_number"] = ev.StepNumber
		m["tool_calls"] = nonNil(ev.ToolCalls)
		m["observation"] = ev.Observation
	case EventStepComplete:
		m["step_number"] = ev.StepNumber
		m["step"] = ev.Step
	case EventStepError:
		m["step_number"] = ev.StepNumber
		m["error"] = ev.Err
	case EventGeneratingFinalAnswer:
	case EventSessionComplete:
		m["session"] = ev.Session
		if ev.Session != nil {
			m["success"] = ev.Session.Success
			m["final_answer"] = ev.Session.FinalAnswer
			m["error"] = ev.Session.Error
		}
	case EventSessionError:
		m["error"] = ev.Err
		m["session_id"] = ev.SessionID
	}
	return json.Marshal(m)
}

func nonNil(calls []ToolCall) []ToolCall {
	if calls == nil {
		return []ToolCall{}
	}
	return calls
}

// emitter forwards events to a stream. A nil emitter drops everything, which
// is how the non-streaming Run shares the loop.
type emitter func(StreamEvent)

func (em emitter) active() bool { return em != nil }

func (em emitter) send(ev StreamEvent) {
	if em != nil {
		em(ev)
	}
}

// RunStream executes a reasoning run and reports progress on the returned
// channel, which is closed after a session_complete or session_error event.
// Cancellation and panics end the stream with session_error; every other
// outcome, including a failed session, ends it with session_complete. The
// caller must drain the channel until it is closed.
func (e *Engine) RunStream(ctx context.Context, query, sessionID string) <-chan StreamEvent {
	ch := make(chan StreamEvent, StreamBuffer)
	s := e.newSession(query, sessionID)

	go func() {
		defer close(ch)

		emit := emitter(func(ev StreamEvent) {
			ev.SessionID = s.ID
			ch <- ev
		})

		emit(StreamEvent{
			Type:      EventSessionStart,
			Query:     s.Query,
			Timestamp: s.Start,
			Session:   s.Clone(),
		})

		err := e.run(ctx, s, e.streamText(emit), emit)

		final := s.Clone()
		if err != nil {
			emit(StreamEvent{Type: EventSessionError, Err: err.Error(), Session: final})
			return
		}
		emit(StreamEvent{Type: EventSessionComplete, Session: final})
	}()

	return ch
}

// streamText generates a step through Provider.Stream, emitting a thinking
// event per fragment. A mid-stream error fails the step.
func (e *Engine) streamText(emit emitter) generateFunc {
	return func(ctx context.Context, prompt string, n int) (string, error) {
		ctx, span := e.tracer.Start(ctx, "react.generate", trace.WithAttributes(
			attribute.Int("react.step", n),
			attribute.Bool("react.stream", true),
		))
		defer span.End()

		chunks, err := e.provider.Stream(ctx, e.request(prompt))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}

		var sb strings.Builder
		var streamErr error
		for chunk := range chunks {
			if chunk.Err != nil {
				if streamErr == nil {
					streamErr = chunk.Err
				}
				continue
			}
			if chunk.Content == "" {
				continue
			}
			sb.WriteString(chunk.Content)
			emit.send(StreamEvent{
				Type:        EventThinking,
				StepNumber:  n,
				Content:     chunk.Content,
				FullContent: sb.String(),
			})
		}
		if streamErr != nil {
			span.RecordError(streamErr)
			span.SetStatus(codes.Error, streamErr.Error())
			return "", streamErr
		}
		return sb.String(), nil
	}
}
