package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	deliverycontext "gateway/internal/delivery/context"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe_WithoutPrincipal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/gateway/me", nil), httptest.NewRecorder())

	err := NewAuthHandler(AuthHandlerParams{}).Me(c)

	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized))
}

func TestMe_WritesPrincipal(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/gateway/me", nil), rec)
	principal := deliverycontext.Principal{UserID: uuid.New(), SessionID: uuid.New()}
	deliverycontext.SetPrincipal(c, principal)
	deliverycontext.SetRequestID(c, "req-9")

	require.NoError(t, NewAuthHandler(AuthHandlerParams{}).Me(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, principal.UserID.String(), body["user_id"])
	assert.Equal(t, principal.SessionID.String(), body["session_id"])
	assert.Equal(t, map[string]any{"request_id": "req-9"}, body["meta"])
}

func TestHealthCheck(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","meta":{"request_id":""}}`, rec.Body.String())
}
