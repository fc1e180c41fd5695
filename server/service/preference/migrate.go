package preference

import (
	"time"

	"github.com/hrygo/gamelogd/store"
)

// Legacy records only knew liked and disliked. They map onto fixed ratings.
const (
	LegacyLikedRating    HalfStars = 8 // 4.0
	LegacyDislikedRating HalfStars = 4 // 2.0
)

// Migrate converts a liked/disliked record into the rated form. The original
// rating dates are unknown, so every migrated entry is dated now. A game that
// appears in both lists keeps its liked rating.
//
// Records that are not legacy are returned unchanged.
func Migrate(prefs *store.UserPreferences, now time.Time) *store.UserPreferences {
	if prefs == nil || !prefs.IsLegacy() {
		return prefs
	}

	migrated := prefs.Clone()
	migrated.RatedGames = make([]store.RatedGame, 0, len(prefs.LikedGames)+len(prefs.DislikedGames))
	seen := make(map[string]bool, cap(migrated.RatedGames))

	appendRated := func(games []store.Game, stars HalfStars) {
		for _, game := range games {
			if game.ID == "" || seen[game.ID] {
				continue
			}
			seen[game.ID] = true
			dateRated := now
			migrated.RatedGames = append(migrated.RatedGames, store.RatedGame{
				Game:      game,
				Rating:    stars.Float(),
				DateRated: &dateRated,
			})
		}
	}
	appendRated(prefs.LikedGames, LegacyLikedRating)
	appendRated(prefs.DislikedGames, LegacyDislikedRating)

	migrated.LikedGames = nil
	migrated.DislikedGames = nil
	return migrated
}
