package test

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db/memory"
)

func NewTestingStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(memory.NewDB(), &profile.Profile{Mode: "dev", Driver: "memory"})
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func createTestUser(ctx context.Context, t *testing.T, s *store.Store, id, email string) *store.User {
	t.Helper()
	user, err := s.CreateUser(ctx, &store.User{
		ID:           id,
		Email:        email,
		Username:     "player_" + id,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	user := createTestUser(ctx, t, s, "u1", "Player@Example.com")
	assert.Equal(t, "player@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())

	t.Run("find by id", func(t *testing.T) {
		found, err := s.GetUser(ctx, &store.FindUser{ID: &user.ID})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "player_u1", found.Username)
	})

	t.Run("find by email is case insensitive", func(t *testing.T) {
		email := "PLAYER@example.com"
		found, err := s.GetUser(ctx, &store.FindUser{Email: &email})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "u1", found.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		id := "nobody"
		found, err := s.GetUser(ctx, &store.FindUser{ID: &id})
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.CreateUser(ctx, &store.User{ID: "u2", Email: "player@example.com"})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("seeded with empty preferences", func(t *testing.T) {
		record, err := s.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: user.ID})
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.NotNil(t, record.Preferences.RatedGames)
		assert.Empty(t, record.Preferences.RatedGames)
	})

	t.Run("list", func(t *testing.T) {
		createTestUser(ctx, t, s, "u3", "other@example.com")
		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "u1", users[0].ID)
		assert.Equal(t, "u3", users[1].ID)
	})
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	user := createTestUser(ctx, t, s, "u1", "a@example.com")
	other := createTestUser(ctx, t, s, "u10", "b@example.com")
	for _, owner := range []*store.User{user, other} {
		_, err := s.UpsertGameNote(ctx, &store.GameNote{ID: "n", GameID: "42", UserID: owner.ID, Note: "great"})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteUser(ctx, &store.DeleteUser{ID: user.ID}))

	found, err := s.GetUser(ctx, &store.FindUser{ID: &user.ID})
	require.NoError(t, err)
	assert.Nil(t, found)

	email := "a@example.com"
	found, err = s.GetUser(ctx, &store.FindUser{Email: &email})
	require.NoError(t, err)
	assert.Nil(t, found)

	record, err := s.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: user.ID})
	require.NoError(t, err)
	assert.Nil(t, record)

	notes, err := s.ListGameNotes(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	notes, err = s.ListGameNotes(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1, "other users keep their notes")

	assert.ErrorIs(t, s.DeleteUser(ctx, &store.DeleteUser{ID: user.ID}), store.ErrNotFound)

	// The email can be claimed again.
	createTestUser(ctx, t, s, "u2", "a@example.com")
}

func TestUserPreferencesStore(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	record, err := s.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, record)

	now := time.Now().UTC().Truncate(time.Second)
	prefs := &store.UserPreferences{
		RatedGames: []store.RatedGame{
			{Game: store.Game{ID: "42", Title: "X"}, Rating: 4.5, DateRated: &now},
		},
	}
	saved, err := s.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: "u1", Preferences: prefs})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	t.Run("round trip", func(t *testing.T) {
		record, err := s.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: "u1"})
		require.NoError(t, err)
		require.Len(t, record.Preferences.RatedGames, 1)
		got := record.Preferences.RatedGames[0]
		assert.Equal(t, "42", got.ID)
		assert.Equal(t, 4.5, got.Rating)
		assert.True(t, now.Equal(*got.DateRated))
		assert.False(t, record.Preferences.IsLegacy())
	})

	t.Run("compare and swap", func(t *testing.T) {
		stale := int64(0)
		_, err := s.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: "u1", Preferences: prefs, ExpectedVersion: &stale})
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		current := saved.Version
		updated, err := s.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: "u1", Preferences: prefs, ExpectedVersion: &current})
		require.NoError(t, err)
		assert.Equal(t, current+1, updated.Version)
	})

	t.Run("legacy shape is detected", func(t *testing.T) {
		_, err := s.GetDriver().Set(ctx, "preferences:legacy", []byte(`{"likedGames":[{"id":"1","title":"A"}],"dislikedGames":[]}`))
		require.NoError(t, err)

		record, err := s.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: "legacy"})
		require.NoError(t, err)
		assert.True(t, record.Preferences.IsLegacy())
		assert.Equal(t, "A", record.Preferences.LikedGames[0].Title)
	})
}

func TestUserPreferencesClone(t *testing.T) {
	ts := time.Now()
	original := &store.UserPreferences{
		RatedGames:                []store.RatedGame{{Game: store.Game{ID: "1"}, Rating: 3}},
		LastRecommendationRefresh: &ts,
	}
	clone := original.Clone()
	clone.RatedGames[0].Rating = 5
	*clone.LastRecommendationRefresh = ts.Add(time.Hour)

	assert.Equal(t, float64(3), original.RatedGames[0].Rating)
	assert.True(t, ts.Equal(*original.LastRecommendationRefresh))
	assert.Nil(t, clone.CachedRecommendations)
}

func TestGameCacheStore(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	cached, err := s.GetCachedGame(ctx, "1942")
	require.NoError(t, err)
	assert.Nil(t, cached)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SetCachedGame(ctx, "1942", &store.CachedGame{
		GameData: json.RawMessage(`{"id":1942,"name":"The Witcher 3"}`),
		CachedAt: at,
	}))

	cached, err = s.GetCachedGame(ctx, "1942")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.JSONEq(t, `{"id":1942,"name":"The Witcher 3"}`, string(cached.GameData))
	assert.True(t, at.Equal(cached.CachedAt))
}

func TestGameNoteStore(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	note, err := s.GetGameNote(ctx, &store.FindGameNote{UserID: "u1", GameID: "42"})
	require.NoError(t, err)
	assert.Nil(t, note)

	_, err = s.UpsertGameNote(ctx, &store.GameNote{ID: "u1-42-1", GameID: "42", UserID: "u1", Note: "first"})
	require.NoError(t, err)
	_, err = s.UpsertGameNote(ctx, &store.GameNote{ID: "u1-42-2", GameID: "42", UserID: "u1", Note: "second"})
	require.NoError(t, err)

	note, err = s.GetGameNote(ctx, &store.FindGameNote{UserID: "u1", GameID: "42"})
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "second", note.Note)

	require.NoError(t, s.DeleteGameNote(ctx, &store.FindGameNote{UserID: "u1", GameID: "42"}))
	notes, err := s.ListGameNotes(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(t)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.Stats{}, stats)

	createTestUser(ctx, t, s, "u1", "one@example.com")
	createTestUser(ctx, t, s, "u2", "two@example.com")
	_, err = s.UpsertGameNote(ctx, &store.GameNote{ID: "n1", GameID: "42", UserID: "u1", Note: "great"})
	require.NoError(t, err)
	require.NoError(t, s.SetCachedGame(ctx, "42", &store.CachedGame{
		GameData: json.RawMessage(`{"id":42}`),
		CachedAt: time.Now().UTC(),
	}))

	stats, err = s.GetStats(ctx)
	require.NoError(t, err)
	// Email mappings are not counted as users.
	assert.Equal(t, &store.Stats{TotalUsers: 2, TotalPreferences: 2, TotalNotes: 1, TotalCachedGames: 1}, stats)
}
