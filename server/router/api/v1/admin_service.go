package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/server/service/user"
)

const (
	adminActionStats = "stats"
	adminActionUsers = "users"
)

type adminUsersResponse struct {
	Users []*user.Account `json:"users"`
}

type adminMessageResponse struct {
	Message string `json:"message"`
}

// requireAdmin rejects admin requests while no admin secret is configured,
// and requests that do not carry it as their bearer token.
func (s *APIV1Service) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.Profile == nil || !s.Profile.IsAdminEnabled() {
			return apperrors.ConfigMissing("The admin API")
		}
		return auth.RequireSecret(s.Profile.AdminSecret)(next)(c)
	}
}

// GetDatabase reports store statistics or lists every account.
// GET /api/v1/admin/database?action=stats|users
func (s *APIV1Service) GetDatabase(c echo.Context) error {
	ctx := c.Request().Context()
	switch c.QueryParam("action") {
	case adminActionStats:
		stats, err := s.Users.Stats(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, stats)
	case adminActionUsers:
		accounts, err := s.Users.List(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, adminUsersResponse{Users: accounts})
	default:
		return apperrors.InvalidArgument("Invalid action. Use ?action=stats or ?action=users")
	}
}

// DeleteUser removes an account with its preferences and notes.
// DELETE /api/v1/admin/database?userId=
func (s *APIV1Service) DeleteUser(c echo.Context) error {
	userID := strings.TrimSpace(c.QueryParam("userId"))
	if userID == "" {
		return apperrors.InvalidArgument("userId is required")
	}

	ctx := c.Request().Context()
	if err := s.Users.Delete(ctx, userID); err != nil {
		return err
	}
	observability.Logger(ctx).Info("user deleted by admin", slog.String("user_id", userID))
	return c.JSON(http.StatusOK, adminMessageResponse{Message: "User deleted successfully"})
}
