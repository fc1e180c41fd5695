package preference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/store"
)

func TestMigrate(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("liked and disliked map to fixed ratings", func(t *testing.T) {
		legacy := &store.UserPreferences{
			LikedGames:    []store.Game{game("1", "Hades"), game("2", "Celeste")},
			DislikedGames: []store.Game{game("3", "Anthem")},
		}

		migrated := Migrate(legacy, now)

		require.Len(t, migrated.RatedGames, 3)
		assert.Equal(t, 4.0, migrated.RatedGames[0].Rating)
		assert.Equal(t, 4.0, migrated.RatedGames[1].Rating)
		assert.Equal(t, 2.0, migrated.RatedGames[2].Rating)
		for _, rg := range migrated.RatedGames {
			require.NotNil(t, rg.DateRated)
			assert.True(t, rg.DateRated.Equal(now))
		}
		assert.Nil(t, migrated.LikedGames)
		assert.Nil(t, migrated.DislikedGames)
		assert.False(t, migrated.IsLegacy())

		// The input is left alone.
		assert.Len(t, legacy.LikedGames, 2)
	})

	t.Run("game in both lists keeps liked", func(t *testing.T) {
		migrated := Migrate(&store.UserPreferences{
			LikedGames:    []store.Game{game("7", "Doom")},
			DislikedGames: []store.Game{game("7", "Doom")},
		}, now)

		require.Len(t, migrated.RatedGames, 1)
		assert.Equal(t, 4.0, migrated.RatedGames[0].Rating)
	})

	t.Run("empty legacy lists", func(t *testing.T) {
		migrated := Migrate(&store.UserPreferences{LikedGames: []store.Game{}}, now)
		assert.NotNil(t, migrated.RatedGames)
		assert.Empty(t, migrated.RatedGames)
	})

	t.Run("current records are untouched", func(t *testing.T) {
		current := &store.UserPreferences{RatedGames: []store.RatedGame{{Game: game("1", "Hades"), Rating: 5}}}
		assert.Same(t, current, Migrate(current, now))
	})
}
