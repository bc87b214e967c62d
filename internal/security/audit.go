// Package security provides secret redaction for logs and a JSONL audit
// trail of authentication, queries and tool calls.
package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Audit event types.
const (
	EventAuthSuccess   EventType = "auth_success"
	EventAuthFailure   EventType = "auth_failure"
	EventQuery         EventType = "query"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventSessionDelete EventType = "session_delete"
	EventSessionsClear EventType = "sessions_clear"
)

// AuditEvent is a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Remote    string            `json:"remote_addr,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	// Writer receives one JSON object per line. Nil disables output.
	Writer io.Writer

	// Redactor, if set, is applied to Detail and Metadata values.
	Redactor *Redactor

	// OnEvent, if set, sees every event after redaction.
	OnEvent func(AuditEvent)

	Now func() time.Time
}

// AuditLogger writes audit events as JSONL. A nil *AuditLogger discards
// everything, so callers never need to check before logging.
type AuditLogger struct {
	writer      io.Writer
	redactor    *Redactor
	onEvent     func(AuditEvent)
	now         func() time.Time
	mu          sync.Mutex
	writeErrors atomic.Int64
}

// NewAuditLogger creates an audit logger.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
	}
}

// Log stamps and writes an event. The caller's Metadata map is not mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	event.Metadata = maps.Clone(event.Metadata)

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		if err := json.NewEncoder(l.writer).Encode(event); err != nil {
			l.writeErrors.Add(1)
		}
	}
}

// WriteErrors reports how many events failed to reach the writer.
func (l *AuditLogger) WriteErrors() int64 {
	if l == nil {
		return 0
	}
	return l.writeErrors.Load()
}
