package preference

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/internal/profile"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

func TestLoadAbsentRecord(t *testing.T) {
	f := newFixture(t, profile.ConcurrencyMutex)

	snapshot, err := f.prefStore.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, snapshot.Exists())
	assert.NotNil(t, snapshot.Preferences.RatedGames)
	assert.Empty(t, snapshot.Preferences.RatedGames)

	data, err := json.Marshal(snapshot.Preferences)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ratedGames":[]}`, string(data))
}

func TestLoadMigratesLegacyRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	_, err := f.driver.Set(ctx, "preferences:u1",
		[]byte(`{"likedGames":[{"id":"10","title":"Outer Wilds"}],"dislikedGames":[{"id":"11","title":"Babylon's Fall"}]}`))
	require.NoError(t, err)

	snapshot, err := f.prefStore.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snapshot.Preferences.RatedGames, 2)
	assert.Equal(t, 4.0, snapshot.Preferences.RatedGames[0].Rating)
	assert.Equal(t, 2.0, snapshot.Preferences.RatedGames[1].Rating)
	assert.True(t, snapshot.Preferences.RatedGames[0].DateRated.Equal(f.now))
	assert.EqualValues(t, 2, snapshot.Version)

	// The migrated shape is persisted.
	entry, err := f.driver.Get(ctx, "preferences:u1")
	require.NoError(t, err)
	stored := map[string]any{}
	require.NoError(t, json.Unmarshal(entry.Value, &stored))
	assert.Contains(t, stored, "ratedGames")
	assert.NotContains(t, stored, "likedGames")
	assert.NotContains(t, stored, "dislikedGames")
}

func TestRateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	first, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 4.5)
	require.NoError(t, err)
	second, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 4.5)
	require.NoError(t, err)

	require.Len(t, first.RatedGames, 1)
	require.Len(t, second.RatedGames, 1)
	assert.Equal(t, first.RatedGames[0].Rating, second.RatedGames[0].Rating)
	assert.Equal(t, first.RatedGames[0].ID, second.RatedGames[0].ID)
}

func TestRateZeroDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	_, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 3.5)
	require.NoError(t, err)
	_, err = f.reconciler.Rate(ctx, "u1", game("7", "Celeste"), 5)
	require.NoError(t, err)

	prefs, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 0)
	require.NoError(t, err)
	require.Len(t, prefs.RatedGames, 1)
	assert.Equal(t, "7", prefs.RatedGames[0].ID)

	rating, err := f.reconciler.RatingOf(ctx, "u1", "42")
	require.NoError(t, err)
	assert.Zero(t, rating)
}

func TestRatingsStayUniquePerGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	for _, rating := range []float64{1, 2.5, 5, 0.5, 3} {
		_, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), rating)
		require.NoError(t, err)
		_, err = f.reconciler.Rate(ctx, "u1", game("8", "Tunic"), rating)
		require.NoError(t, err)
	}

	prefs, err := f.reconciler.Get(ctx, "u1")
	require.NoError(t, err)
	seen := map[string]int{}
	for _, rg := range prefs.RatedGames {
		seen[rg.ID]++
	}
	assert.Equal(t, map[string]int{"42": 1, "8": 1}, seen)
}

func TestRateRemoveFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	ratingOf := func() float64 {
		rating, err := f.reconciler.RatingOf(ctx, "u1", "42")
		require.NoError(t, err)
		return rating
	}

	_, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 4.5)
	require.NoError(t, err)
	assert.Equal(t, 4.5, ratingOf())

	_, err = f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, ratingOf())

	_, err = f.reconciler.Remove(ctx, "u1", "42")
	require.NoError(t, err)
	assert.Zero(t, ratingOf())

	// A second remove is a no-op.
	prefs, err := f.reconciler.Remove(ctx, "u1", "42")
	require.NoError(t, err)
	assert.Empty(t, prefs.RatedGames)
}

func TestRateRecordsDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	prefs, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 2)
	require.NoError(t, err)
	require.NotNil(t, prefs.RatedGames[0].DateRated)
	assert.True(t, prefs.RatedGames[0].DateRated.Equal(f.now))

	f.now = f.now.Add(time.Hour)
	prefs, err = f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 2)
	require.NoError(t, err)
	assert.True(t, prefs.RatedGames[0].DateRated.Equal(f.now))
}

func TestRateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	_, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 4.2)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))

	_, err = f.reconciler.Rate(ctx, "u1", game("", "Nameless"), 4)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))

	snapshot, err := f.prefStore.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, snapshot.Exists())
}

func TestRemoveAbsentDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	_, err := f.reconciler.Remove(ctx, "u1", "42")
	require.NoError(t, err)

	entry, err := f.driver.Get(ctx, "preferences:u1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	prefs, err := f.reconciler.Replace(ctx, "u1", &store.UserPreferences{
		RatedGames: []store.RatedGame{
			{Game: game("1", "Hades"), Rating: 2},
			{Game: game("2", "Celeste"), Rating: 0},
			{Game: game("3", "Tunic"), Rating: 4},
			{Game: game("1", "Hades"), Rating: 5},
		},
	})
	require.NoError(t, err)
	require.Len(t, prefs.RatedGames, 2)
	assert.Equal(t, "3", prefs.RatedGames[0].ID)
	assert.Equal(t, "1", prefs.RatedGames[1].ID)
	assert.Equal(t, 5.0, prefs.RatedGames[1].Rating)

	_, err = f.reconciler.Replace(ctx, "u1", &store.UserPreferences{
		RatedGames: []store.RatedGame{{Game: game("1", "Hades"), Rating: 7}},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))

	stored, err := f.reconciler.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored.RatedGames, 2)
}

func TestReplaceMigratesLegacyBody(t *testing.T) {
	f := newFixture(t, profile.ConcurrencyMutex)

	prefs, err := f.reconciler.Replace(context.Background(), "u1", &store.UserPreferences{
		LikedGames: []store.Game{game("1", "Hades")},
	})
	require.NoError(t, err)
	require.Len(t, prefs.RatedGames, 1)
	assert.Equal(t, 4.0, prefs.RatedGames[0].Rating)
	assert.Nil(t, prefs.LikedGames)
}

func TestStoreRecommendations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, profile.ConcurrencyMutex)

	_, err := f.reconciler.Rate(ctx, "u1", game("42", "Hades"), 5)
	require.NoError(t, err)

	recs := []store.GameRecommendation{{Game: game("100", "Dead Cells"), Explanation: "Tight roguelite combat"}}
	prefs, err := f.reconciler.StoreRecommendations(ctx, "u1", recs, "digest", f.now)
	require.NoError(t, err)
	assert.Equal(t, recs, prefs.CachedRecommendations)
	assert.True(t, prefs.LastRecommendationRefresh.Equal(f.now))
	assert.Equal(t, "digest", prefs.RecommendationDigest)
	assert.Len(t, prefs.RatedGames, 1)
}
