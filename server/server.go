package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/plugin/ai"
	"github.com/hrygo/gamelogd/plugin/igdb"
	"github.com/hrygo/gamelogd/server/auth"
	"github.com/hrygo/gamelogd/server/middleware"
	apiv1 "github.com/hrygo/gamelogd/server/router/api/v1"
	"github.com/hrygo/gamelogd/server/service/game"
	"github.com/hrygo/gamelogd/server/service/note"
	"github.com/hrygo/gamelogd/server/service/preference"
	"github.com/hrygo/gamelogd/server/service/recommendation"
	"github.com/hrygo/gamelogd/server/service/user"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db/memory"
)

type Server struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	// fallback keeps preference writes the primary store rejected.
	fallback *store.Store
	// breaker guards the LLM generator; nil when recommendations are off.
	breaker    *recommendation.BreakerGenerator
	echoServer *echo.Echo
}

// NewServer wires every service on top of s and registers the HTTP routes.
func NewServer(_ context.Context, profile *profile.Profile, s *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	echoServer.Use(middleware.RequestContext(slog.Default()))

	server := &Server{
		Secret:     profile.Secret,
		Profile:    profile,
		Store:      s,
		fallback:   store.New(memory.NewDB(), profile),
		echoServer: echoServer,
	}

	// Health and metrics.
	echoServer.GET("/healthz", server.healthz)
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1Service, err := server.newAPIV1Service()
	if err != nil {
		return nil, err
	}
	apiV1Service.RegisterRoutes(echoServer)

	return server, nil
}

func (s *Server) newAPIV1Service() (*apiv1.APIV1Service, error) {
	tokens := auth.NewTokenManager(s.Secret, auth.DefaultTokenTTL)

	preferenceStore := preference.NewPreferenceStore(s.Store, s.fallback, nil)
	strategy, err := preference.NewStrategy(s.Profile.Concurrency, preferenceStore)
	if err != nil {
		return nil, err
	}
	reconciler := preference.NewReconciler(preferenceStore, strategy, nil)

	service := &apiv1.APIV1Service{
		Profile:               s.Profile,
		Authenticator:         auth.NewAuthenticator(tokens),
		Users:                 user.NewService(s.Store, tokens, nil),
		Preferences:           reconciler,
		Notes:                 note.NewService(s.Store, nil),
		RecommendationLimiter: middleware.NewRateLimiter(s.Profile.RecommendationRPS, 0),
	}

	// Game metadata, only when IGDB credentials are present.
	var provider game.Provider
	if s.Profile.IsMetadataEnabled() {
		client, err := igdb.NewClient(igdb.NewConfigFromProfile(s.Profile))
		if err != nil {
			slog.Warn("game metadata disabled", slog.String("error", err.Error()))
		} else {
			provider = client
		}
	}
	service.Games = game.NewService(s.Store, provider, nil)
	if s.Profile.MetadataTimeout > 0 {
		service.Games.FetchTimeout = s.Profile.MetadataTimeout
	}

	// Recommendations, only when an LLM provider is configured.
	aiConfig := ai.NewConfigFromProfile(s.Profile)
	if aiConfig.Enabled {
		gate, breaker, err := newRecommendationGate(s.Profile, aiConfig, reconciler)
		if err != nil {
			slog.Warn("recommendations disabled", slog.String("error", err.Error()))
		} else {
			service.Recommendations = gate
			s.breaker = breaker
		}
	}

	return service, nil
}

func newRecommendationGate(profile *profile.Profile, aiConfig *ai.Config, prefs recommendation.Preferences) (*recommendation.Gate, *recommendation.BreakerGenerator, error) {
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, err
	}
	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return nil, nil, err
	}
	policy, err := recommendation.NewPolicy(profile.RecommendationPolicy, profile.RecommendationWindow)
	if err != nil {
		return nil, nil, err
	}

	breaker := recommendation.NewBreakerGenerator(ai.NewRecommender(llmService), recommendation.DefaultBreakerConfig())
	gate := recommendation.NewGate(prefs, breaker, recommendation.Config{
		Policy:  policy,
		Timeout: profile.LLMTimeout,
	})
	return gate, breaker, nil
}

type healthResponse struct {
	Status string `json:"status"`
	// Recommendations is the generator circuit state: closed, half-open or open.
	Recommendations string `json:"recommendations,omitempty"`
}

// healthz reports unavailable only when the store is unreachable. An open
// recommendation circuit is reported but does not fail the check.
func (s *Server) healthz(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	if s.breaker != nil {
		resp.Recommendations = s.breaker.State().String()
	}
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("gamelogd started", slog.String("address", address), slog.String("driver", s.Profile.Driver), slog.String("mode", s.Profile.Mode))
	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Shutdown echo server.
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	// Close database connection.
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	if err := s.fallback.Close(); err != nil {
		slog.Error("failed to close fallback store", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}

// Handler exposes the HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}
