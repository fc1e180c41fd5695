package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/service/user"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	User    *user.Account `json:"user,omitempty"`
	Token   string        `json:"token,omitempty"`
}

// Register creates an account and returns it with a login token.
// POST /api/v1/auth/register
func (s *APIV1Service) Register(c echo.Context) error {
	form := &auth.Registration{}
	if err := c.Bind(form); err != nil {
		return apperrors.InvalidArgument("Invalid request format")
	}

	session, err := s.Users.Register(c.Request().Context(), form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{
		Success: true,
		Message: "Registration successful",
		User:    session.User,
		Token:   session.Token,
	})
}

// Login exchanges credentials for a token.
// POST /api/v1/auth/login
func (s *APIV1Service) Login(c echo.Context) error {
	req := &LoginRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid request format")
	}

	session, err := s.Users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{
		Success: true,
		Message: "Login successful",
		User:    session.User,
		Token:   session.Token,
	})
}

// Me returns the authenticated account.
// GET /api/v1/auth/me
func (s *APIV1Service) Me(c echo.Context) error {
	ctx := c.Request().Context()
	account, err := s.Users.Get(ctx, auth.GetUserID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{
		Success: true,
		Message: "User retrieved successfully",
		User:    account,
	})
}
