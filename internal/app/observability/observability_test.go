package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"entrytest/internal/auth"
)

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/admin/questions/123")
	want := "/api/v1/admin/questions/{id}"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractSessionID(t *testing.T) {
	if id := extractSessionID("/api/v1/sessions/456/submit"); id != 456 {
		t.Fatalf("expected 456, got %d", id)
	}
	if id := extractSessionID("/api/v1/admin/students/1"); id != 0 {
		t.Fatalf("expected 0 for non-session path, got %d", id)
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	c := NewCollector(nil)
	h := c.Middleware(c.AnnotateAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/9/submit", nil)
		req = req.WithContext(auth.ContextWithAdmin(req.Context(), &auth.Admin{ID: 1}))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	w := httptest.NewRecorder()
	c.MetricsHandler(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	want := `entrytest_http_requests_total{method="POST",path="/api/v1/sessions/{id}/submit",status="201"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("metrics missing %q:\n%s", want, body)
	}
}
