package preference

import (
	"context"
	"slices"
	"time"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

// Reconciler applies rating edits so that every user holds at most one rating per game.
type Reconciler struct {
	store    *PreferenceStore
	strategy Strategy
	now      func() time.Time
}

// NewReconciler creates a Reconciler writing through strategy.
func NewReconciler(ps *PreferenceStore, strategy Strategy, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:    ps,
		strategy: strategy,
		now:      now,
	}
}

// Get returns the user's current preferences.
func (r *Reconciler) Get(ctx context.Context, userID string) (*store.UserPreferences, error) {
	snapshot, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snapshot.Preferences, nil
}

// Snapshot returns the user's current record along with its version and origin.
func (r *Reconciler) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	return r.store.Load(ctx, userID)
}

// Rate sets the user's rating for game. A rating of 0 removes it.
// Rating the same game twice with the same value leaves a single entry.
func (r *Reconciler) Rate(ctx context.Context, userID string, game store.Game, rating float64) (*store.UserPreferences, error) {
	mutation, err := ParseRating(rating)
	if err != nil {
		return nil, err
	}
	return r.Apply(ctx, userID, game, mutation)
}

// Remove deletes the user's rating for gameID. Removing an unrated game is a no-op.
func (r *Reconciler) Remove(ctx context.Context, userID, gameID string) (*store.UserPreferences, error) {
	return r.Apply(ctx, userID, store.Game{ID: gameID}, ClearMutation{})
}

// Apply runs a single rating mutation.
func (r *Reconciler) Apply(ctx context.Context, userID string, game store.Game, mutation Mutation) (*store.UserPreferences, error) {
	if game.ID == "" {
		return nil, apperrors.InvalidArgument("Game ID is required")
	}

	snapshot, err := r.strategy.Update(ctx, userID, func(prefs *store.UserPreferences) (bool, error) {
		before := len(prefs.RatedGames)
		prefs.RatedGames = slices.DeleteFunc(prefs.RatedGames, func(rg store.RatedGame) bool {
			return rg.ID == game.ID
		})

		switch m := mutation.(type) {
		case RateMutation:
			now := r.now()
			prefs.RatedGames = append(prefs.RatedGames, store.RatedGame{
				Game:      game,
				Rating:    m.Stars.Float(),
				DateRated: &now,
			})
			return true, nil
		case ClearMutation:
			return len(prefs.RatedGames) != before, nil
		default:
			return false, apperrors.InvalidArgument("unsupported rating change")
		}
	})
	return preferencesOf(snapshot, err)
}

// RatingOf returns the user's rating for gameID, or 0 when the game is unrated.
func (r *Reconciler) RatingOf(ctx context.Context, userID, gameID string) (float64, error) {
	prefs, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, rg := range prefs.RatedGames {
		if rg.ID == gameID {
			return rg.Rating, nil
		}
	}
	return 0, nil
}

// Replace overwrites the whole record. Every rating is validated, duplicate
// games collapse to their last occurrence and unrated entries are dropped.
func (r *Reconciler) Replace(ctx context.Context, userID string, incoming *store.UserPreferences) (*store.UserPreferences, error) {
	if incoming == nil {
		return nil, apperrors.InvalidArgument("Preferences are required")
	}
	next := Migrate(incoming.Clone(), r.now())

	lastIndex := make(map[string]int, len(next.RatedGames))
	for i, rg := range next.RatedGames {
		if rg.ID == "" {
			return nil, apperrors.InvalidArgument("Every rated game needs an ID")
		}
		if err := validateRating(rg.Rating); err != nil {
			return nil, err
		}
		lastIndex[rg.ID] = i
	}
	rated := make([]store.RatedGame, 0, len(next.RatedGames))
	for i, rg := range next.RatedGames {
		if lastIndex[rg.ID] != i || HalfStarsOf(rg.Rating) == 0 {
			continue
		}
		rated = append(rated, rg)
	}
	next.RatedGames = rated

	snapshot, err := r.strategy.Update(ctx, userID, func(prefs *store.UserPreferences) (bool, error) {
		*prefs = *next
		return true, nil
	})
	return preferencesOf(snapshot, err)
}

// StoreRecommendations records a freshly generated recommendation set.
func (r *Reconciler) StoreRecommendations(ctx context.Context, userID string, recs []store.GameRecommendation, digest string, refreshedAt time.Time) (*store.UserPreferences, error) {
	snapshot, err := r.strategy.Update(ctx, userID, func(prefs *store.UserPreferences) (bool, error) {
		prefs.CachedRecommendations = recs
		prefs.LastRecommendationRefresh = &refreshedAt
		prefs.RecommendationDigest = digest
		return true, nil
	})
	return preferencesOf(snapshot, err)
}

// preferencesOf keeps the preferences of a degraded write alongside its error.
func preferencesOf(snapshot *Snapshot, err error) (*store.UserPreferences, error) {
	if snapshot == nil {
		return nil, err
	}
	return snapshot.Preferences, err
}
