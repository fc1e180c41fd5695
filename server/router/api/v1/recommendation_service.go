package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/service/recommendation"
	"github.com/hrygo/gamelogd/store"
)

// RecommendationsRequest is the body of POST /api/v1/recommendations.
type RecommendationsRequest struct {
	RatedGames []store.RatedGame `json:"ratedGames"`
	Count      int               `json:"count,omitempty" validate:"gte=0"`
}

type recommendationsResponse struct {
	Recommendations []store.GameRecommendation `json:"recommendations"`
	Cached          bool                       `json:"cached,omitempty"`
	RefreshedAt     *time.Time                 `json:"refreshedAt,omitempty"`
	Warning         string                     `json:"warning,omitempty"`
	Error           string                     `json:"error,omitempty"`
}

// requireRecommendations rejects recommendation requests while no LLM is configured.
func (s *APIV1Service) requireRecommendations(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.Recommendations == nil {
			return apperrors.ConfigMissing("The recommendation service")
		}
		return next(c)
	}
}

// GetRecommendations serves cached recommendations while fresh, generating new ones otherwise.
// POST /api/v1/recommendations
func (s *APIV1Service) GetRecommendations(c echo.Context) error {
	ctx := c.Request().Context()

	req := &RecommendationsRequest{}
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArgument("Invalid request format: Could not parse JSON body")
	}
	if err := c.Validate(req); err != nil {
		return apperrors.InvalidArgument("Invalid request format: count must not be negative")
	}

	result, err := s.Recommendations.Recommend(ctx, &recommendation.Request{
		UserID:     auth.GetUserID(ctx),
		RatedGames: req.RatedGames,
		Count:      req.Count,
	})
	if err != nil {
		return err
	}

	resp := recommendationsResponse{
		Recommendations: result.Recommendations,
		Cached:          result.Cached,
		Warning:         result.Warning,
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []store.GameRecommendation{}
	}
	if !result.RefreshedAt.IsZero() {
		refreshedAt := result.RefreshedAt
		resp.RefreshedAt = &refreshedAt
	}
	return c.JSON(http.StatusOK, resp)
}
