package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/server/internal/observability"
)

func TestRequestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := echo.New()
	e.Use(RequestContext(logger))
	var seen *observability.RequestContext
	e.GET("/api/v1/games/:id", func(c echo.Context) error {
		reqCtx, ok := observability.FromContext(c.Request().Context())
		require.True(t, ok)
		seen = reqCtx
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/42", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "req-7", seen.RequestID)
	assert.Equal(t, "get_games_id", seen.Operation)
	assert.Equal(t, "req-7", rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), "request completed")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "post_games_rate", operationOf(http.MethodPost, "/api/v1/games/rate"))
	assert.Equal(t, "put_notes_noteId", operationOf(http.MethodPut, "/api/v1/notes/:noteId"))
	assert.Equal(t, "get_healthz", operationOf(http.MethodGet, "/healthz"))
}
