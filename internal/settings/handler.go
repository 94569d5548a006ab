package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"entrytest/internal/app/apiresp"
)

type Handler struct {
	svc settingsService
}

type settingsService interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, in UpdateInput) (Settings, error)
}

type updateRequest struct {
	SchoolName       string `json:"school_name"`
	EasyPercent      int    `json:"easy_percent"`
	MediumPercent    int    `json:"medium_percent"`
	HardPercent      int    `json:"hard_percent"`
	EnglishQuestions int    `json:"english_questions"`
	UrduQuestions    int    `json:"urdu_questions"`
	MathQuestions    int    `json:"math_questions"`
}

type publicSettings struct {
	SchoolName     string `json:"school_name"`
	TotalQuestions int    `json:"total_questions"`
	DurationSecs   int    `json:"duration_secs"`
}

// durationSecs mirrors the exam clock; the landing page only displays it.
const durationSecs = 30 * 60

func NewHandler(svc settingsService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, publicSettings{
		SchoolName:     out.SchoolName,
		TotalQuestions: out.Total(),
		DurationSecs:   durationSecs,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.svc.Update(r.Context(), UpdateInput(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPercentSum):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSettingsNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
