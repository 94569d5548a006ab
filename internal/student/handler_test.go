package student

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockStudentService struct {
	createFn func(ctx context.Context, in CreateInput) (*Student, error)
	getFn    func(ctx context.Context, id int64) (*Student, error)
	listFn   func(ctx context.Context, f ListFilter) ([]Student, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockStudentService) Create(ctx context.Context, in CreateInput) (*Student, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, in)
}

func (m *mockStudentService) Get(ctx context.Context, id int64) (*Student, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockStudentService) List(ctx context.Context, f ListFilter) ([]Student, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx, f)
}

func (m *mockStudentService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteFn(ctx, id)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateStudent(t *testing.T) {
	h := NewHandler(&mockStudentService{
		createFn: func(ctx context.Context, in CreateInput) (*Student, error) {
			if in.Name != "Ali" || in.ClassLevel != "Grade 3" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &Student{ID: 1, AccessCode: "123456", Name: in.Name, Status: StatusPending}, nil
		},
	})

	body := []byte(`{"name":"Ali","father_name":"Khan","class_level":"Grade 3"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/students", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

func TestCreateStudentInvalidInput(t *testing.T) {
	h := NewHandler(&mockStudentService{
		createFn: func(ctx context.Context, in CreateInput) (*Student, error) {
			return nil, ErrInvalidInput
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/students", bytes.NewReader([]byte(`{"name":""}`)))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDeleteStudentNotFound(t *testing.T) {
	h := NewHandler(&mockStudentService{
		deleteFn: func(ctx context.Context, id int64) error {
			if id != 9 {
				t.Fatalf("unexpected id %d", id)
			}
			return ErrStudentNotFound
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/students/9", nil)
	req = withChiParam(req, "id", "9")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListStudentsPassesStatus(t *testing.T) {
	h := NewHandler(&mockStudentService{
		listFn: func(ctx context.Context, f ListFilter) ([]Student, error) {
			if f.Status != "completed" {
				t.Fatalf("unexpected filter: %+v", f)
			}
			return []Student{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/students?status=completed", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
