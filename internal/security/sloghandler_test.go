package security

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const testKey = "sk-abcdefghijklmnopqrstuvwxyz"

func newRedactingLogger(buf *bytes.Buffer, level slog.Level, literals ...string) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(inner, NewRedactor(literals...)))
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		log    func(*slog.Logger)
		secret string
		keep   string
	}{
		{
			name:   "message",
			log:    func(l *slog.Logger) { l.Info("key is " + testKey) },
			secret: testKey,
			keep:   "key is",
		},
		{
			name:   "attribute",
			log:    func(l *slog.Logger) { l.Info("provider ready", "api_key", "gemini-literal", "model", "flash") },
			secret: "gemini-literal",
			keep:   "model=flash",
		},
		{
			name:   "with attrs",
			log:    func(l *slog.Logger) { l.With("api_key", "gemini-literal").Info("request") },
			secret: "gemini-literal",
			keep:   "request",
		},
		{
			name:   "with group",
			log:    func(l *slog.Logger) { l.WithGroup("provider").Info("attempt", "key", testKey) },
			secret: testKey,
			keep:   "attempt",
		},
		{
			name: "group attribute",
			log: func(l *slog.Logger) {
				l.Info("call", slog.Group("request", slog.String("auth", "Bearer "+testKey), slog.String("path", "/api/query")))
			},
			secret: testKey,
			keep:   "/api/query",
		},
		{
			name:   "error value",
			log:    func(l *slog.Logger) { l.Error("failed", "error", errors.New("rejected key gemini-literal")) },
			secret: "gemini-literal",
			keep:   "rejected key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.log(newRedactingLogger(&buf, slog.LevelDebug, "gemini-literal"))

			out := buf.String()
			if strings.Contains(out, tt.secret) {
				t.Errorf("secret found in output: %s", out)
			}
			if !strings.Contains(out, tt.keep) {
				t.Errorf("output missing %q: %s", tt.keep, out)
			}
		})
	}
}

func TestRedactingHandler_NoSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newRedactingLogger(&buf, slog.LevelDebug).Info("normal message", "session_id", "session_1")

	if out := buf.String(); strings.Contains(out, RedactPlaceholder) {
		t.Errorf("unexpected redaction: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := NewRedactingHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}), NewRedactor())
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at warn level")
	}
}
