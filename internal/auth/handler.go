package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"entrytest/internal/app/apiresp"
)

type contextKey string

const adminContextKey contextKey = "auth_admin"

const SessionCookieName = "entrytest_session"

type Handler struct {
	svc          authService
	secureCookie bool
}

type authService interface {
	Authenticate(ctx context.Context, username, password string) (*Admin, error)
	Bootstrap(ctx context.Context, in BootstrapInput) (*Admin, error)
	ChangePassword(ctx context.Context, adminID int64, in ChangePasswordInput) error
	CreateSession(ctx context.Context, adminID int64, ipAddress, userAgent string) (string, time.Time, error)
	SessionAdmin(ctx context.Context, token string) (*Admin, error)
	RevokeSession(ctx context.Context, token string) error
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewHandler builds the admin auth handler. secureCookie marks the session
// cookie Secure and should be on whenever the portal is served over TLS.
func NewHandler(svc authService, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.establishSession(w, r, admin); err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "cannot create session")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, admin)
}

func (h *Handler) BootstrapInit(w http.ResponseWriter, r *http.Request) {
	var req BootstrapInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := h.svc.Bootstrap(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrBootstrapDenied):
			apiresp.WriteError(w, r, http.StatusForbidden, "bootstrap denied")
		case errors.Is(err, ErrAlreadyBootstrap):
			apiresp.WriteError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, admin)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	_ = h.svc.RevokeSession(r.Context(), readSessionToken(r))

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, admin)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ChangePasswordInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.ChangePassword(r.Context(), admin.ID, req); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInvalidCredentials):
			apiresp.WriteError(w, r, http.StatusForbidden, "current password is incorrect")
		case errors.Is(err, ErrUnauthorized):
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// The old cookie was revoked with the rest; hand out a fresh one.
	if err := h.establishSession(w, r, admin); err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "cannot create session")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.svc.SessionAdmin(r.Context(), readSessionToken(r))
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithAdmin(r.Context(), admin)))
	})
}

func CurrentAdmin(ctx context.Context) (*Admin, bool) {
	v := ctx.Value(adminContextKey)
	if v == nil {
		return nil, false
	}
	a, ok := v.(*Admin)
	return a, ok
}

// ContextWithAdmin injects an authenticated admin into context.
// Useful for tests and internal handlers.
func ContextWithAdmin(ctx context.Context, admin *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, admin *Admin) error {
	token, expiresAt, err := h.svc.CreateSession(r.Context(), admin.ID, readIP(r), r.UserAgent())
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func readSessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return strings.TrimSpace(r.RemoteAddr)
}
