package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"entrytest/internal/exam"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	dashboardFn func(ctx context.Context) (*Dashboard, error)
	listFn      func(ctx context.Context, f ResultFilter) ([]ResultRow, error)
	studentFn   func(ctx context.Context, studentID int64) (*exam.Result, error)
	exportFn    func(ctx context.Context, f ResultFilter) ([]byte, error)
}

func (m *mockReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	if m.dashboardFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.dashboardFn(ctx)
}

func (m *mockReportService) ListResults(ctx context.Context, f ResultFilter) ([]ResultRow, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx, f)
}

func (m *mockReportService) StudentResult(ctx context.Context, studentID int64) (*exam.Result, error) {
	if m.studentFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.studentFn(ctx, studentID)
}

func (m *mockReportService) ExportResultsExcel(ctx context.Context, f ResultFilter) ([]byte, error) {
	if m.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.exportFn(ctx, f)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestExportResultsSetsAttachmentHeaders(t *testing.T) {
	h := NewHandler(&mockReportService{
		exportFn: func(ctx context.Context, f ResultFilter) ([]byte, error) {
			if f.ClassLevel != "Grade 3" {
				t.Fatalf("unexpected filter %+v", f)
			}
			return []byte("xlsx"), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/results/export.xlsx?class_level=Grade+3", nil)
	w := httptest.NewRecorder()
	h.ExportResults(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;") {
		t.Fatalf("expected attachment disposition, got %q", w.Header().Get("Content-Disposition"))
	}
}

func TestStudentResultNotFound(t *testing.T) {
	h := NewHandler(&mockReportService{
		studentFn: func(ctx context.Context, studentID int64) (*exam.Result, error) {
			return nil, ErrResultNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/results/4", nil)
	req = withChiParam(req, "studentID", "4")
	w := httptest.NewRecorder()
	h.StudentResult(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDashboard(t *testing.T) {
	h := NewHandler(&mockReportService{
		dashboardFn: func(ctx context.Context) (*Dashboard, error) {
			return &Dashboard{TotalStudents: 3, CompletedTests: 1, RecentResults: []ResultRow{}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total_students":3`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
