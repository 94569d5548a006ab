package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"entrytest/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc examService
}

type examService interface {
	Start(ctx context.Context, accessCode string) (*StartResult, error)
	GetSession(ctx context.Context, id int64) (*SessionView, error)
	SaveAnswers(ctx context.Context, id int64, answers Answers) error
	Submit(ctx context.Context, id int64, answers Answers) (*SubmitResult, error)
	GetResult(ctx context.Context, id int64) (*Result, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type startRequest struct {
	AccessCode string `json:"access_code"`
}

type answersRequest struct {
	Answers Answers `json:"answers"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func sessionPath(id int64) string {
	return fmt.Sprintf("/api/v1/sessions/%d", id)
}

func resultPath(id int64) string {
	return sessionPath(id) + "/result"
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	code := strings.TrimSpace(req.AccessCode)
	if code == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "access_code is required"})
		return
	}

	out, err := h.svc.Start(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAccessCode):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "Invalid Access Code"})
		case errors.Is(err, ErrAlreadyCompleted):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "Test already completed"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	w.Header().Set("Location", sessionPath(out.SessionID))
	status := http.StatusCreated
	if out.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, r, status, response{OK: true, Data: out})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionCompleted) {
			apiresp.WriteRedirect(w, r, resultPath(id))
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.SaveAnswers(r.Context(), id, req.Answers); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]interface{}{
		"session_id": id,
		"saved":      len(req.Answers),
	}})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	out, err := h.svc.Submit(r.Context(), id, req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", resultPath(id))
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFinal) {
			apiresp.WriteRedirect(w, r, sessionPath(id))
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAnswer):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionCompleted):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionExpired):
		writeJSON(w, r, http.StatusGone, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
