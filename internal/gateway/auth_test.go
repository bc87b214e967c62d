package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/quill/internal/security"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	both := AuthConfig{BearerToken: "my-token", BasicUser: "admin", BasicPass: "pass123"}

	tests := []struct {
		name   string
		cfg    AuthConfig
		setup  func(*http.Request)
		want   int
		detail string
	}{
		{"valid bearer", both, bearer("my-token"), http.StatusOK, "bearer"},
		{"wrong bearer", both, bearer("nope"), http.StatusUnauthorized, "invalid credentials"},
		{"bearer without scheme", both, header("my-token"), http.StatusUnauthorized, "invalid credentials"},
		{"valid basic", both, basic("admin", "pass123"), http.StatusOK, "basic"},
		{"wrong basic password", both, basic("admin", "pass"), http.StatusUnauthorized, "invalid credentials"},
		{"basic not configured", AuthConfig{BearerToken: "t"}, basic("admin", "pass123"), http.StatusUnauthorized, "invalid credentials"},
		{"missing header", both, func(*http.Request) {}, http.StatusUnauthorized, "missing authorization header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var events []security.AuditEvent
			audit := security.NewAuditLogger(security.AuditLoggerConfig{
				OnEvent: func(e security.AuditEvent) { events = append(events, e) },
			})
			reached := false
			handler := authMiddleware(tt.cfg, audit)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if reached != (tt.want == http.StatusOK) {
				t.Errorf("next handler reached = %v", reached)
			}
			if tt.want == http.StatusUnauthorized {
				if body := decode[errorResponse](t, rr); body.Detail != "unauthorized" {
					t.Errorf("detail = %q", body.Detail)
				}
			}

			if len(events) != 1 {
				t.Fatalf("got %d audit events, want 1", len(events))
			}
			ev := events[0]
			wantType := security.EventAuthFailure
			if tt.want == http.StatusOK {
				wantType = security.EventAuthSuccess
			}
			if ev.Type != wantType || ev.Detail != tt.detail {
				t.Errorf("event = %s %q, want %s %q", ev.Type, ev.Detail, wantType, tt.detail)
			}
			if ev.Metadata["path"] != "/api/sessions" || ev.Metadata["method"] != http.MethodGet {
				t.Errorf("metadata = %v", ev.Metadata)
			}
		})
	}
}

func TestAuthMiddleware_NilAudit(t *testing.T) {
	t.Parallel()

	handler := authMiddleware(AuthConfig{BearerToken: "tok"}, nil)(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg  AuthConfig
		want bool
	}{
		{AuthConfig{}, false},
		{AuthConfig{BearerToken: "tok"}, true},
		{AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{AuthConfig{BasicUser: "u"}, false},
		{AuthConfig{BasicPass: "p"}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.IsConfigured(); got != tt.want {
			t.Errorf("%+v.IsConfigured() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func bearer(token string) func(*http.Request) {
	return header("Bearer " + token)
}

func header(v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", v) }
}

func basic(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}
