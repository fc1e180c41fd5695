package recommendation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/internal/profile"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/service/preference"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db/memory"
)

// countingGenerator records how often it was called and with what.
type countingGenerator struct {
	calls     atomic.Int32
	lastCount int
	err       error
	recs      []store.GameRecommendation
}

func (g *countingGenerator) Generate(_ context.Context, _ []store.RatedGame, count int) ([]store.GameRecommendation, error) {
	g.calls.Add(1)
	g.lastCount = count
	if g.err != nil {
		return nil, g.err
	}
	return g.recs, nil
}

type gateFixture struct {
	reconciler *preference.Reconciler
	generator  *countingGenerator
	now        time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	f := &gateFixture{
		generator: &countingGenerator{recs: []store.GameRecommendation{
			{Game: store.Game{ID: "dead-cells", Title: "Dead Cells"}, Explanation: "Fast roguelite combat"},
		}},
		now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	primary := store.New(memory.NewDB(), &profile.Profile{})
	t.Cleanup(func() { _ = primary.Close() })

	clock := func() time.Time { return f.now }
	ps := preference.NewPreferenceStore(primary, nil, clock)
	f.reconciler = preference.NewReconciler(ps, preference.NewMutexStrategy(ps), clock)
	return f
}

func (f *gateFixture) gate(policy FreshnessPolicy) *Gate {
	return NewGate(f.reconciler, f.generator, Config{
		Policy: policy,
		Now:    func() time.Time { return f.now },
	})
}

func (f *gateFixture) rate(t *testing.T, id string, rating float64) []store.RatedGame {
	t.Helper()
	prefs, err := f.reconciler.Rate(context.Background(), "u1", store.Game{ID: id, Title: "Game " + id}, rating)
	require.NoError(t, err)
	return prefs.RatedGames
}

// seedCache stores a recommendation set generated at refreshedAt.
func (f *gateFixture) seedCache(t *testing.T, rated []store.RatedGame, refreshedAt time.Time) []store.GameRecommendation {
	t.Helper()
	cached := []store.GameRecommendation{{Game: store.Game{ID: "celeste", Title: "Celeste"}, Explanation: "Precise platforming"}}
	_, err := f.reconciler.StoreRecommendations(context.Background(), "u1", cached, Digest(rated), refreshedAt)
	require.NoError(t, err)
	return cached
}

func TestGateServesFreshCache(t *testing.T) {
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	refreshedAt := f.now
	cached := f.seedCache(t, rated, refreshedAt)

	f.now = refreshedAt.Add(23 * time.Hour)
	result, err := f.gate(nil).Recommend(context.Background(), &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)

	assert.EqualValues(t, 0, f.generator.calls.Load())
	assert.True(t, result.Cached)
	assert.Equal(t, cached, result.Recommendations)
	assert.True(t, result.RefreshedAt.Equal(refreshedAt))
}

func TestGateRegeneratesStaleCache(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	f.seedCache(t, rated, f.now)

	f.now = f.now.Add(25 * time.Hour)
	result, err := f.gate(nil).Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.generator.calls.Load())
	assert.False(t, result.Cached)
	assert.Equal(t, f.generator.recs, result.Recommendations)
	assert.Empty(t, result.Warning)

	prefs, err := f.reconciler.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, f.generator.recs, prefs.CachedRecommendations)
	require.NotNil(t, prefs.LastRecommendationRefresh)
	assert.True(t, prefs.LastRecommendationRefresh.Equal(f.now))

	// The new set is now fresh.
	result, err = f.gate(nil).Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.EqualValues(t, 1, f.generator.calls.Load())
}

func TestGateGeneratesWithoutCache(t *testing.T) {
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)

	_, err := f.gate(nil).Recommend(context.Background(), &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.generator.calls.Load())
}

func TestGateTreatsEmptyCacheAsStale(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	_, err := f.reconciler.StoreRecommendations(ctx, "u1", []store.GameRecommendation{}, Digest(rated), f.now)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	_, err = f.gate(nil).Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.generator.calls.Load())
}

func TestGateFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	refreshedAt := f.now
	f.seedCache(t, rated, refreshedAt)

	before, err := f.reconciler.Snapshot(ctx, "u1")
	require.NoError(t, err)

	f.generator.err = errors.New("llm exploded")
	f.now = f.now.Add(48 * time.Hour)
	_, err = f.gate(nil).Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamUnavailable))
	assert.ErrorIs(t, err, f.generator.err)

	after, err := f.reconciler.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Preferences, after.Preferences)
	assert.True(t, after.Preferences.LastRecommendationRefresh.Equal(refreshedAt))
}

func TestGatePreconditions(t *testing.T) {
	f := newGateFixture(t)

	t.Run("empty rated games", func(t *testing.T) {
		_, err := f.gate(nil).Recommend(context.Background(), &Request{UserID: "u1"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
	})

	t.Run("missing preferences", func(t *testing.T) {
		_, err := f.gate(nil).Recommend(context.Background(), &Request{
			UserID:     "ghost",
			RatedGames: []store.RatedGame{{Game: store.Game{ID: "1"}, Rating: 3}},
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	assert.EqualValues(t, 0, f.generator.calls.Load())
}

func TestGateCount(t *testing.T) {
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	gate := f.gate(nil)

	tests := []struct {
		count int
		want  int
	}{
		{0, DefaultCount},
		{3, 3},
		{100, MaxCount},
	}
	for _, tt := range tests {
		// Generated sets are empty, so every call regenerates.
		f.generator.recs = nil
		_, err := gate.Recommend(context.Background(), &Request{UserID: "u1", RatedGames: rated, Count: tt.count})
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.generator.lastCount)
	}
}

func TestGateWithDigestPolicy(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)
	f.seedCache(t, rated, f.now)
	gate := f.gate(RatingsDigestPolicy{})

	f.now = f.now.Add(72 * time.Hour)
	result, err := gate.Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.EqualValues(t, 0, f.generator.calls.Load())

	rated = f.rate(t, "7", 2)
	result, err = gate.Recommend(ctx, &Request{UserID: "u1", RatedGames: rated})
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.EqualValues(t, 1, f.generator.calls.Load())
}

func TestGateTimeout(t *testing.T) {
	f := newGateFixture(t)
	rated := f.rate(t, "42", 4.5)

	slow := GeneratorFunc(func(ctx context.Context, _ []store.RatedGame, _ int) ([]store.GameRecommendation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	gate := NewGate(f.reconciler, slow, Config{Timeout: 10 * time.Millisecond, Now: func() time.Time { return f.now }})

	_, err := gate.Recommend(context.Background(), &Request{UserID: "u1", RatedGames: rated})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
}
