package middleware

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/internal/observability"
)

// RequestContext attaches an observability.RequestContext to every request,
// logs its completion and records the HTTP metrics.
func RequestContext(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			reqCtx := observability.NewRequestContextWithID(logger, requestID, operationOf(req.Method, route))
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))
			c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)

			err := next(c)
			if err != nil {
				// Let echo write the response so the recorded status is final.
				c.Error(err)
			}

			status := c.Response().Status
			observability.RecordHTTPRequest(req.Method, route, status, reqCtx.Duration())
			attrs := []slog.Attr{
				slog.Int("status", status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			}
			if status >= 500 {
				reqCtx.Warn("request completed", attrs...)
			} else {
				reqCtx.Debug("request completed", attrs...)
			}
			return nil
		}
	}
}

// operationOf names a route for logs, e.g. "POST /api/v1/games/rate" -> "post_games_rate".
func operationOf(method, route string) string {
	route = strings.TrimPrefix(route, "/api/v1")
	parts := []string{strings.ToLower(method)}
	for _, segment := range strings.Split(route, "/") {
		segment = strings.TrimPrefix(segment, ":")
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	return strings.Join(parts, "_")
}
