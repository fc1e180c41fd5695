package auth

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
)

const bearerPrefix = "Bearer "

// Messages returned when a request is not authenticated.
type Messages struct {
	Missing string
	Invalid string
}

// DefaultMessages are used by most authenticated routes.
var DefaultMessages = Messages{
	Missing: "No token provided",
	Invalid: "Invalid token",
}

// Authenticator verifies bearer tokens on incoming requests.
type Authenticator struct {
	tokens *TokenManager
}

// NewAuthenticator creates an authenticator backed by tokens.
func NewAuthenticator(tokens *TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate extracts and verifies the bearer token in header.
func (a *Authenticator) Authenticate(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrEmptyToken
	}
	claims, err := a.tokens.ValidateToken(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Require rejects requests without a valid bearer token with 401 and msgs.
func (a *Authenticator) Require(msgs Messages) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return apperrors.Unauthorized(msgs.Missing)
			}

			userID, err := a.Authenticate(header)
			if err != nil {
				observability.Logger(c.Request().Context()).Debug("rejected bearer token", slog.String("error", err.Error()))
				return apperrors.Unauthorized(msgs.Invalid)
			}

			ctx := SetUserIDInContext(c.Request().Context(), userID)
			if reqCtx, ok := observability.FromContext(ctx); ok {
				reqCtx.UserID = userID
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireSecret admits only requests whose bearer token equals secret.
func RequireSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
			if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return apperrors.Unauthorized("Unauthorized")
			}
			return next(c)
		}
	}
}
