package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/plugin/igdb"
)

type gameResponse struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data"`
	Cached   bool       `json:"cached"`
	CachedAt *time.Time `json:"cachedAt,omitempty"`
}

type lookupResponse struct {
	Data any `json:"data"`
}

// GetGame returns game details, served from the shared cache for 24 hours.
// GET /api/v1/games/:id
func (s *APIV1Service) GetGame(c echo.Context) error {
	result, err := s.Games.GetGame(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	resp := gameResponse{Success: true, Data: result.Data, Cached: result.Cached}
	if !result.CachedAt.IsZero() {
		cachedAt := result.CachedAt
		resp.CachedAt = &cachedAt
	}
	return c.JSON(http.StatusOK, resp)
}

// SearchGames returns up to five games matching q.
// GET /api/v1/games/search?q=
func (s *APIV1Service) SearchGames(c echo.Context) error {
	games, err := s.Games.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	if games == nil {
		games = []igdb.Game{}
	}
	return c.JSON(http.StatusOK, lookupResponse{Data: games})
}

// GetGameCover returns the cover image URL of the best match for title, or null.
// GET /api/v1/games/cover?title=
func (s *APIV1Service) GetGameCover(c echo.Context) error {
	cover, err := s.Games.CoverFor(c.Request().Context(), c.QueryParam("title"))
	if err != nil {
		return err
	}
	if cover == "" {
		return c.JSON(http.StatusOK, lookupResponse{})
	}
	return c.JSON(http.StatusOK, lookupResponse{Data: cover})
}

// LookupGame returns the id of the best match for title, or null.
// GET /api/v1/games/lookup?title=
func (s *APIV1Service) LookupGame(c echo.Context) error {
	id, err := s.Games.ResolveID(c.Request().Context(), c.QueryParam("title"))
	if err != nil {
		return err
	}
	if id == 0 {
		return c.JSON(http.StatusOK, lookupResponse{})
	}
	return c.JSON(http.StatusOK, lookupResponse{Data: id})
}
