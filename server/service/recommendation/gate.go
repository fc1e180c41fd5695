package recommendation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/server/service/preference"
	"github.com/hrygo/gamelogd/store"
)

const (
	DefaultCount = 5
	MaxCount     = 20
)

// Preferences is the part of the preference service the gate reads and writes.
type Preferences interface {
	Snapshot(ctx context.Context, userID string) (*preference.Snapshot, error)
	StoreRecommendations(ctx context.Context, userID string, recs []store.GameRecommendation, digest string, refreshedAt time.Time) (*store.UserPreferences, error)
}

// Config configures a Gate.
type Config struct {
	Policy FreshnessPolicy
	// Timeout bounds a single generator call. Zero leaves it to the caller's context.
	Timeout time.Duration
	Now     func() time.Time
}

// Gate serves cached recommendations while they are fresh and calls the
// generator otherwise.
type Gate struct {
	prefs     Preferences
	generator Generator
	policy    FreshnessPolicy
	timeout   time.Duration
	now       func() time.Time
}

// NewGate creates a Gate. A nil policy means a 24 hour window.
func NewGate(prefs Preferences, generator Generator, cfg Config) *Gate {
	if cfg.Policy == nil {
		cfg.Policy = WindowPolicy{Window: DefaultWindow}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{
		prefs:     prefs,
		generator: generator,
		policy:    cfg.Policy,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
	}
}

// Request asks for recommendations based on RatedGames.
type Request struct {
	UserID     string
	RatedGames []store.RatedGame
	Count      int
}

// Result is the recommendation set served to the caller.
type Result struct {
	Recommendations []store.GameRecommendation
	// Cached is set when the set came from the cache without calling the generator.
	Cached      bool
	RefreshedAt time.Time
	// Warning is set when a freshly generated set could not be persisted durably.
	Warning string
}

// Recommend returns the user's recommendations. On generator failure nothing
// is persisted and the error is returned.
func (g *Gate) Recommend(ctx context.Context, req *Request) (*Result, error) {
	if len(req.RatedGames) == 0 {
		return nil, apperrors.InvalidArgument("Please provide at least one rated game for recommendations.")
	}
	count := clampCount(req.Count)

	snapshot, err := g.prefs.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Exists() {
		return nil, apperrors.NotFound("User preferences not found")
	}

	prefs := snapshot.Preferences
	digest := Digest(req.RatedGames)
	now := g.now()
	logger := observability.Logger(ctx)

	if g.policy.IsFresh(prefs, digest, now) {
		observability.RecordGateOutcome(observability.GateFresh)
		logger.Debug("serving cached recommendations", slog.Int("count", len(prefs.CachedRecommendations)))
		result := &Result{Recommendations: prefs.CachedRecommendations, Cached: true}
		if prefs.LastRecommendationRefresh != nil {
			result.RefreshedAt = *prefs.LastRecommendationRefresh
		}
		return result, nil
	}

	recs, err := g.generate(ctx, req.RatedGames, count)
	if err != nil {
		observability.RecordGateOutcome(observability.GateFailed)
		logger.Warn("recommendation generation failed", slog.String("error", err.Error()))
		var coded *apperrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("Generating recommendations took too long", err)
		}
		return nil, apperrors.Upstream("Failed to generate recommendations", err)
	}
	observability.RecordGateOutcome(observability.GateGenerated)

	result := &Result{Recommendations: recs, RefreshedAt: now}
	if _, err := g.prefs.StoreRecommendations(ctx, req.UserID, recs, digest, now); err != nil {
		// The generated set is served even when caching it fails.
		logger.Warn("failed to cache recommendations", slog.String("error", err.Error()))
		if errors.Is(err, preference.ErrDegraded) {
			result.Warning = "Recommendations were saved to temporary storage and may not persist"
		} else {
			result.Warning = "Recommendations could not be cached"
		}
	}
	return result, nil
}

func (g *Gate) generate(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	recs, err := g.generator.Generate(ctx, ratedGames, count)
	observability.RecommendationGenerateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []store.GameRecommendation{}
	}
	return recs, nil
}

func clampCount(count int) int {
	if count <= 0 {
		return DefaultCount
	}
	return min(count, MaxCount)
}
