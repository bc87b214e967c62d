package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/quill/internal/monitor"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status              monitor.Status `json:"status"`
	SuccessRate         float64        `json:"success_rate"`
	TotalSessions       int            `json:"total_sessions"`
	RecentErrors        int            `json:"recent_errors"`
	AverageResponseTime float64        `json:"average_response_time"`
	ActiveSessions      int            `json:"active_sessions"`
	Model               string         `json:"model"`
	Timestamp           time.Time      `json:"timestamp"`
}

// handleHealth returns 200 unless the service is unhealthy, in which case
// it returns 503 with the same body.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := g.svc.Monitoring(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := HealthResponse{
			Status:              m.Health.Status,
			SuccessRate:         m.Health.SuccessRate,
			TotalSessions:       m.Health.TotalSessions,
			RecentErrors:        m.Health.RecentErrors,
			AverageResponseTime: m.Health.AverageResponseTime,
			ActiveSessions:      m.ActiveSessions,
			Model:               m.AgentConfig.Model,
			Timestamp:           m.Health.Timestamp,
		}

		status := http.StatusOK
		if resp.Status == monitor.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// handleLive answers as long as the process serves requests.
func (g *Gateway) handleLive() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

func (g *Gateway) handleMonitoring() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := g.svc.Monitoring(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (g *Gateway) handleTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.svc.Tools())
	}
}
