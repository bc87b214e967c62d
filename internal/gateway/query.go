package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/service"
)

// streamComplete is the trailing frame of every SSE and WebSocket stream.
var streamComplete = []byte(`{"type":"stream_complete"}`)

func (g *Gateway) decodeRequest(w http.ResponseWriter, r *http.Request) (service.Request, bool) {
	var req service.Request
	body := http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

// handleQuery runs a session to completion and returns its Result.
func (g *Gateway) handleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := g.decodeRequest(w, r)
		if !ok {
			return
		}
		if req.Stream {
			writeError(w, http.StatusBadRequest, "use /api/query/stream for streaming responses")
			return
		}

		res, err := g.svc.Process(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		g.auditQuery(r, res.SessionID, req.Query)
		writeJSON(w, http.StatusOK, res)
	}
}

// handleQueryStream relays session events as server-sent events, one JSON
// object per data frame, closed by a stream_complete frame.
func (g *Gateway) handleQueryStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := g.decodeRequest(w, r)
		if !ok {
			return
		}

		events, err := g.svc.ProcessStream(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		rc := http.NewResponseController(w)
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		for ev := range events {
			if ev.Type == agent.EventSessionStart {
				g.auditQuery(r, ev.SessionID, req.Query)
			}
			data, err := json.Marshal(ev)
			if err != nil {
				g.logger.Error("encoding stream event failed", "type", ev.Type, "error", err)
				continue
			}
			if err := writeSSE(w, rc, data); err != nil {
				g.logger.Debug("stream consumer gone", "session_id", ev.SessionID, "error", err)
				return
			}
		}
		_ = writeSSE(w, rc, streamComplete)
	}
}

func writeSSE(w http.ResponseWriter, rc *http.ResponseController, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

func (g *Gateway) auditQuery(r *http.Request, sessionID, query string) {
	g.audit.Log(security.AuditEvent{
		Type:      security.EventQuery,
		SessionID: sessionID,
		Remote:    r.RemoteAddr,
		Detail:    agent.Truncate(query, 100),
	})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
