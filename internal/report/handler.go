package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"entrytest/internal/app/apiresp"
	"entrytest/internal/exam"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	ListResults(ctx context.Context, f ResultFilter) ([]ResultRow, error)
	StudentResult(ctx context.Context, studentID int64) (*exam.Result, error)
	ExportResultsExcel(ctx context.Context, f ResultFilter) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Dashboard(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListResults(r.Context(), resultFilterFromQuery(r))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) StudentResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid student id")
		return
	}
	out, err := h.svc.StudentResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) ExportResults(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportResultsExcel(r.Context(), resultFilterFromQuery(r))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	filename := fmt.Sprintf("results-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func resultFilterFromQuery(r *http.Request) ResultFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	offset, _ := strconv.Atoi(strings.TrimSpace(q.Get("offset")))
	return ResultFilter{
		ClassLevel: q.Get("class_level"),
		Query:      q.Get("q"),
		Limit:      limit,
		Offset:     offset,
	}
}
