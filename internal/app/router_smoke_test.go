package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRouterSmokeRoutes(t *testing.T) {
	router := NewRouter(Config{
		CSRFEnforced:              false,
		AuthRateLimitPerMin:       60,
		AccessCodeRateLimitPerMin: 60,
		SessionTTL:                time.Hour,
	}, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "healthz", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "start_invalid_body", method: http.MethodPost, target: "/api/v1/test/start", body: "{", wantStatus: http.StatusBadRequest},
		{name: "start_missing_code", method: http.MethodPost, target: "/api/v1/test/start", body: `{"access_code":"  "}`, wantStatus: http.StatusBadRequest},
		{name: "session_bad_id", method: http.MethodGet, target: "/api/v1/sessions/abc", wantStatus: http.StatusBadRequest},
		{name: "login_invalid_body", method: http.MethodPost, target: "/api/v1/auth/login", body: "{", wantStatus: http.StatusBadRequest},
		{name: "login_blank_credentials", method: http.MethodPost, target: "/api/v1/auth/login", body: `{"username":"","password":""}`, wantStatus: http.StatusUnauthorized},
		{name: "bootstrap_without_token", method: http.MethodPost, target: "/api/v1/bootstrap/init", body: `{"token":"x","username":"admin","password":"password1"}`, wantStatus: http.StatusForbidden},
		{name: "auth_me_unauthorized", method: http.MethodGet, target: "/api/v1/auth/me", wantStatus: http.StatusUnauthorized},
		{name: "admin_dashboard_unauthorized", method: http.MethodGet, target: "/api/v1/admin/dashboard", wantStatus: http.StatusUnauthorized},
		{name: "admin_export_unauthorized", method: http.MethodGet, target: "/api/v1/admin/results/export.xlsx", wantStatus: http.StatusUnauthorized},
		{name: "metrics_unauthorized", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusUnauthorized},
		{name: "unknown", method: http.MethodGet, target: "/api/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.target, tc.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestRouterRateLimitsAccessCodeEntry(t *testing.T) {
	router := NewRouter(Config{
		AuthRateLimitPerMin:       60,
		AccessCodeRateLimitPerMin: 2,
	}, nil)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/test/start", strings.NewReader("{"))
		req.RemoteAddr = "192.0.2.10:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", last)
	}
}
