package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/store"
)

// errorBody shapes a coded error into the JSON body of a route family.
type errorBody func(e *apperrors.Error) any

// accountErrorBody is used by routes that answer with {success, ...}.
func accountErrorBody(e *apperrors.Error) any {
	return map[string]any{
		"success": false,
		"message": e.Message,
		"code":    e.Code,
	}
}

// lookupErrorBody is used by the game metadata routes.
func lookupErrorBody(e *apperrors.Error) any {
	return map[string]any{"error": e.Message}
}

func recommendationErrorBody(e *apperrors.Error) any {
	return recommendationsResponse{
		Recommendations: []store.GameRecommendation{},
		Error:           e.Message,
	}
}

// renderErrors writes errors returned further down the chain as JSON in the
// given shape, with the status of their code.
func renderErrors(body errorBody) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}

			appErr := toAppError(err)
			status := appErr.HTTPStatus()
			logger := observability.Logger(c.Request().Context())
			if status >= http.StatusInternalServerError {
				logger.Error("request failed",
					slog.String(observability.LogFieldErrorCode, string(appErr.Code)),
					slog.String("error", err.Error()))
			} else {
				logger.Debug("request rejected",
					slog.String(observability.LogFieldErrorCode, string(appErr.Code)),
					slog.String("error", err.Error()))
			}
			return c.JSON(status, body(appErr))
		}
	}
}

// toAppError maps echo's own errors onto the coded taxonomy.
func toAppError(err error) *apperrors.Error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "Invalid request format")
		case http.StatusUnauthorized:
			return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Authentication required")
		case http.StatusNotFound:
			return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Not found")
		case http.StatusTooManyRequests:
			return apperrors.Wrap(err, apperrors.ErrCodeRateLimitExceeded, "Too many requests, please slow down")
		}
	}
	return apperrors.From(err)
}
