package recommendation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/store"
)

// Generator produces recommendations from a user's rated games.
type Generator interface {
	Generate(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error)

func (f GeneratorFunc) Generate(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error) {
	return f(ctx, ratedGames, count)
}

// BreakerConfig configures the circuit breaker around a generator.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // requests let through while half-open
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // how long the breaker stays open
	FailureThreshold uint32        // consecutive failures before opening
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "recommendation-generator",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerGenerator fails fast while the wrapped generator keeps failing.
type BreakerGenerator struct {
	inner Generator
	cb    *gobreaker.CircuitBreaker[[]store.GameRecommendation]
}

// NewBreakerGenerator wraps inner with a circuit breaker.
func NewBreakerGenerator(inner Generator, cfg BreakerConfig) *BreakerGenerator {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			observability.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		// A caller giving up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	observability.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &BreakerGenerator{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[[]store.GameRecommendation](settings),
	}
}

func (b *BreakerGenerator) Generate(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error) {
	recs, err := b.cb.Execute(func() ([]store.GameRecommendation, error) {
		return b.inner.Generate(ctx, ratedGames, count)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.Upstream("Recommendation service is temporarily unavailable", err)
	}
	return recs, err
}

// State returns the breaker state, for health reporting.
func (b *BreakerGenerator) State() gobreaker.State {
	return b.cb.State()
}
