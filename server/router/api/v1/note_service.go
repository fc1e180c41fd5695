package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

// NoteRequest is the body of the note write routes.
type NoteRequest struct {
	GameID string `json:"gameId"`
	Note   string `json:"note"`
}

type noteResponse struct {
	Success bool            `json:"success"`
	Note    *store.GameNote `json:"note"`
}

// GetNote returns the caller's note for gameId, or null.
// GET /api/v1/notes?gameId=
func (s *APIV1Service) GetNote(c echo.Context) error {
	ctx := c.Request().Context()
	found, err := s.Notes.Get(ctx, auth.GetUserID(ctx), c.QueryParam("gameId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, noteResponse{Success: true, Note: found})
}

// CreateNote writes the caller's note for a game.
// POST /api/v1/notes
func (s *APIV1Service) CreateNote(c echo.Context) error {
	req := &NoteRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid gameId or note")
	}

	ctx := c.Request().Context()
	created, err := s.Notes.Create(ctx, auth.GetUserID(ctx), req.GameID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, noteResponse{Success: true, Note: created})
}

// UpdateNote changes the text of one of the caller's notes.
// PUT /api/v1/notes/:noteId
func (s *APIV1Service) UpdateNote(c echo.Context) error {
	req := &NoteRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid gameId or note")
	}

	ctx := c.Request().Context()
	updated, err := s.Notes.Update(ctx, auth.GetUserID(ctx), c.Param("noteId"), req.GameID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, noteResponse{Success: true, Note: updated})
}
