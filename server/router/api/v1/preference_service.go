package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/server/service/preference"
	"github.com/hrygo/gamelogd/store"
)

const degradedWarning = "Your changes were saved to temporary storage and may not persist"

type preferencesResponse struct {
	Success     bool                   `json:"success"`
	Preferences *store.UserPreferences `json:"preferences"`
	Warning     string                 `json:"warning,omitempty"`
}

// RateGameRequest is the body of POST /api/v1/games/rate.
type RateGameRequest struct {
	Game   *store.Game `json:"game" validate:"required"`
	Rating *float64    `json:"rating" validate:"required"`
}

// RemoveGameRequest is the body of DELETE /api/v1/games/remove.
type RemoveGameRequest struct {
	GameID string `json:"gameId" validate:"required"`
}

// GetPreferences returns the caller's preferences, migrating legacy records on the way.
// GET /api/v1/preferences
func (s *APIV1Service) GetPreferences(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	prefs, err := s.Preferences.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, preferencesResponse{Success: true, Preferences: prefs})
}

// ReplacePreferences overwrites the caller's whole preferences record.
// PUT /api/v1/preferences
func (s *APIV1Service) ReplacePreferences(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	body := &store.UserPreferences{}
	if err := c.Bind(body); err != nil || (body.RatedGames == nil && !body.IsLegacy()) {
		return apperrors.InvalidArgument("Invalid preferences format")
	}

	prefs, err := s.Preferences.Replace(ctx, userID, body)
	return s.writePreferences(c, prefs, err)
}

// RateGame sets the caller's rating for a game. A rating of 0 removes it.
// POST /api/v1/games/rate
func (s *APIV1Service) RateGame(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	req := &RateGameRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid game or rating data")
	}
	if err := c.Validate(req); err != nil {
		return apperrors.InvalidArgument("Invalid game or rating data")
	}

	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Debug("rating game", slog.String(observability.LogFieldGameID, req.Game.ID), slog.Float64("rating", *req.Rating))
	}
	prefs, err := s.Preferences.Rate(ctx, userID, *req.Game, *req.Rating)
	return s.writePreferences(c, prefs, err)
}

// RemoveGame deletes the caller's rating for a game. Removing an unrated game succeeds.
// DELETE /api/v1/games/remove
func (s *APIV1Service) RemoveGame(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	req := &RemoveGameRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return apperrors.InvalidArgument("Game ID is required")
	}

	prefs, err := s.Preferences.Remove(ctx, userID, req.GameID)
	return s.writePreferences(c, prefs, err)
}

// writePreferences answers a preference write. Writes that only reached the
// fallback store still succeed, with a warning.
func (s *APIV1Service) writePreferences(c echo.Context, prefs *store.UserPreferences, err error) error {
	resp := preferencesResponse{Success: true, Preferences: prefs}
	if err != nil {
		if prefs == nil || !errors.Is(err, preference.ErrDegraded) {
			return err
		}
		observability.Logger(c.Request().Context()).Warn("preferences written to fallback store", slog.String("error", err.Error()))
		resp.Warning = degradedWarning
	}
	return c.JSON(http.StatusOK, resp)
}

// requireUser returns the authenticated user id after checking the account still exists.
func (s *APIV1Service) requireUser(ctx context.Context) (string, error) {
	userID := auth.GetUserID(ctx)
	if userID == "" {
		return "", apperrors.Unauthorized("No token provided")
	}
	ok, err := s.Users.Exists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.NotFound("User not found")
	}
	return userID, nil
}
