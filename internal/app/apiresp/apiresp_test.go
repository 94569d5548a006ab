package apiresp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/1/submit", nil), http.StatusGone, "")

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Equal(t, "expired", env.Error.Code)
	assert.Equal(t, http.StatusText(http.StatusGone), env.Error.Message)
}

func TestWriteRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRedirect(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/4", nil), "/api/v1/sessions/4/result")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/sessions/4/result", w.Header().Get("Location"))
	assert.JSONEq(t, `{"ok":true,"data":{"location":"/api/v1/sessions/4/result"},"meta":{}}`, w.Body.String())
}

func TestCodeFromStatus(t *testing.T) {
	assert.Equal(t, "rate_limited", codeFromStatus(http.StatusTooManyRequests))
	assert.Equal(t, "", codeFromStatus(http.StatusSeeOther))
	assert.Equal(t, "error", codeFromStatus(http.StatusTeapot))
}
