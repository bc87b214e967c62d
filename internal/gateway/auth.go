package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/flemzord/quill/internal/security"
)

// authMiddleware validates Bearer token or Basic auth credentials using
// constant-time comparison. Outcomes go to the audit logger, which may be nil.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				auditAuth(audit, security.EventAuthFailure, r, "missing authorization header")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if cfg.BearerToken != "" {
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(token, cfg.BearerToken) {
					auditAuth(audit, security.EventAuthSuccess, r, "bearer")
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					auditAuth(audit, security.EventAuthSuccess, r, "basic")
					next.ServeHTTP(w, r)
					return
				}
			}

			auditAuth(audit, security.EventAuthFailure, r, "invalid credentials")
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func auditAuth(audit *security.AuditLogger, typ security.EventType, r *http.Request, detail string) {
	audit.Log(security.AuditEvent{
		Type:   typ,
		Remote: r.RemoteAddr,
		Detail: detail,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
