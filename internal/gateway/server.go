package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if g.metrics != nil {
		r.Use(g.metrics.middleware)
	}

	// Public, no auth.
	r.Get("/health", g.handleHealth())
	r.Get("/health/live", g.handleLive())
	if g.registry != nil {
		r.Handle("/metrics", g.handleMetrics())
	}

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit))
		}
		r.Get("/ws/query", g.handleWebSocket)
		r.Route("/api", func(r chi.Router) {
			r.Post("/query", g.handleQuery())
			r.Post("/query/stream", g.handleQueryStream())
			r.Get("/sessions", g.handleListSessions())
			r.Delete("/sessions", g.handleClearSessions())
			r.Get("/sessions/{id}", g.handleGetSession())
			r.Delete("/sessions/{id}", g.handleDeleteSession())
			r.Get("/monitoring", g.handleMonitoring())
			r.Get("/tools", g.handleTools())
		})
	})

	return r
}
