package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusConflict, "CONFLICT", "changed meanwhile", map[string]string{"request_id": "r-1"}))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, ErrorEnvelope{Code: "CONFLICT", Message: "changed meanwhile", Meta: map[string]string{"request_id": "r-1"}}, got)
	require.NotContains(t, rec.Body.String(), "fields")
}

func TestWriteJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusNoContent, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
	require.NoError(t, WriteJSON(nil, http.StatusOK, map[string]string{}))
}

func TestStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler(http.StatusNotFound, "NOT_FOUND").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"code":"NOT_FOUND","message":"Not Found"}`, rec.Body.String())
}
