// Package provider defines the text-generation interface the reasoning
// engine consumes, plus decorators for bounded retry and client-side rate
// limiting. Concrete backends live under modules/provider.
package provider

import (
	"context"
	"log/slog"
)

// Provider is the interface for communicating with a text-generation model.
type Provider interface {
	// Complete sends a prompt and returns the full generated text.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a prompt and returns a channel of text fragments whose
	// concatenation equals the Complete text for the same request.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err, after which the channel is closed.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing from the CLI and the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Collect drains a stream and returns the concatenated text. It returns the
// first chunk error encountered, along with the text received before it.
func Collect(ch <-chan StreamChunk) (string, error) {
	var text []byte
	var err error
	for chunk := range ch {
		if chunk.Err != nil {
			if err == nil {
				err = chunk.Err
			}
			continue
		}
		text = append(text, chunk.Content...)
	}
	return string(text), err
}

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely (zero cost).
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// discardLogger returns l, or a logger that drops everything when l is nil.
func discardLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(nopHandler{})
	}
	return l
}
