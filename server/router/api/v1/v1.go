package v1

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/server/auth"
	"github.com/hrygo/gamelogd/server/middleware"
	"github.com/hrygo/gamelogd/server/service/game"
	"github.com/hrygo/gamelogd/server/service/note"
	"github.com/hrygo/gamelogd/server/service/preference"
	"github.com/hrygo/gamelogd/server/service/recommendation"
	"github.com/hrygo/gamelogd/server/service/user"
)

// APIV1Service serves the JSON API mounted under /api/v1.
type APIV1Service struct {
	Profile       *profile.Profile
	Authenticator *auth.Authenticator
	Users         *user.Service
	Preferences   *preference.Reconciler
	Games         *game.Service
	Notes         *note.Service
	// Recommendations is nil when no LLM provider is configured.
	Recommendations *recommendation.Gate
	// RecommendationLimiter bounds recommendation requests per user. Optional.
	RecommendationLimiter *middleware.RateLimiter
}

// RequestValidator adapts validator/v10 to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate checks the struct tags of i.
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// RegisterRoutes mounts every API route on echoServer.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	if echoServer.Validator == nil {
		echoServer.Validator = NewRequestValidator()
	}
	api := echoServer.Group("/api/v1")

	accountErrors := renderErrors(accountErrorBody)
	lookupErrors := renderErrors(lookupErrorBody)
	requireAuth := s.Authenticator.Require(auth.DefaultMessages)

	// Auth
	api.POST("/auth/register", s.Register, accountErrors)
	api.POST("/auth/login", s.Login, accountErrors)
	api.GET("/auth/me", s.Me, accountErrors, requireAuth)

	// Preferences and ratings
	api.GET("/preferences", s.GetPreferences, accountErrors, requireAuth)
	api.PUT("/preferences", s.ReplacePreferences, accountErrors, requireAuth)
	api.POST("/games/rate", s.RateGame, accountErrors, requireAuth)
	api.DELETE("/games/remove", s.RemoveGame, accountErrors, requireAuth)

	// Recommendations
	recommendationMiddleware := []echo.MiddlewareFunc{
		renderErrors(recommendationErrorBody),
		s.requireRecommendations,
		s.Authenticator.Require(auth.Messages{
			Missing: "Authentication required for personalized recommendations",
			Invalid: "Invalid authentication token",
		}),
	}
	if s.RecommendationLimiter != nil {
		recommendationMiddleware = append(recommendationMiddleware, s.RecommendationLimiter.Middleware(func(c echo.Context) string {
			return "user:" + auth.GetUserID(c.Request().Context())
		}))
	}
	api.POST("/recommendations", s.GetRecommendations, recommendationMiddleware...)

	// Game metadata
	api.GET("/games/search", s.SearchGames, lookupErrors)
	api.GET("/games/cover", s.GetGameCover, lookupErrors)
	api.GET("/games/lookup", s.LookupGame, lookupErrors)
	api.GET("/games/:id", s.GetGame, lookupErrors)

	// Notes
	api.GET("/notes", s.GetNote, accountErrors, requireAuth)
	api.POST("/notes", s.CreateNote, accountErrors, requireAuth)
	api.PUT("/notes/:noteId", s.UpdateNote, accountErrors, requireAuth)

	// Admin
	api.GET("/admin/database", s.GetDatabase, lookupErrors, s.requireAdmin)
	api.DELETE("/admin/database", s.DeleteUser, lookupErrors, s.requireAdmin)
}
