package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/quill/internal/security"
	"github.com/flemzord/quill/internal/service"
)

type deleteResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type clearResponse struct {
	Message         string `json:"message"`
	SessionsCleared int    `json:"sessions_cleared"`
}

func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := g.svc.ListSessions(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if sessions == nil {
			sessions = []service.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		detail, err := g.svc.GetSession(r.Context(), id)
		if err != nil {
			writeServiceError(w, fmt.Errorf("session %s: %w", id, err))
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.svc.DeleteSession(r.Context(), id); err != nil {
			writeServiceError(w, fmt.Errorf("session %s: %w", id, err))
			return
		}
		g.audit.Log(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, Remote: r.RemoteAddr})
		writeJSON(w, http.StatusOK, deleteResponse{
			Message:   fmt.Sprintf("Session %s cleared successfully", id),
			SessionID: id,
		})
	}
}

func (g *Gateway) handleClearSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := g.svc.ClearSessions(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		g.audit.Log(security.AuditEvent{
			Type:   security.EventSessionsClear,
			Remote: r.RemoteAddr,
			Detail: fmt.Sprintf("%d sessions", n),
		})
		writeJSON(w, http.StatusOK, clearResponse{
			Message:         fmt.Sprintf("Cleared %d active sessions", n),
			SessionsCleared: n,
		})
	}
}
