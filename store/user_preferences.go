package store

import (
	"context"
	"slices"
	"time"
)

// NamedRef is an id/name pair as returned by the metadata provider (platforms, genres).
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Game is the metadata shared by rated games and recommendations.
type Game struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CoverImage       string     `json:"coverImage,omitempty"`
	Platforms        []NamedRef `json:"platforms,omitempty"`
	Genres           []NamedRef `json:"genres,omitempty"`
	FirstReleaseDate int64      `json:"first_release_date,omitempty"`
}

// RatedGame is a game with the user's half-star rating.
type RatedGame struct {
	Game
	Rating    float64    `json:"rating"`
	DateRated *time.Time `json:"dateRated,omitempty"`
}

// GameRecommendation is a generated suggestion with its reasoning.
type GameRecommendation struct {
	Game
	Explanation string   `json:"explanation"`
	MatchScore  *float64 `json:"matchScore,omitempty"`
}

// UserPreferences is the per-user record stored under preferences:<userId>.
//
// LikedGames and DislikedGames only appear on records written before half-star
// ratings existed; they are cleared once the record is migrated.
type UserPreferences struct {
	RatedGames                []RatedGame          `json:"ratedGames"`
	LastRecommendationRefresh *time.Time           `json:"lastRecommendationRefresh,omitempty"`
	CachedRecommendations     []GameRecommendation `json:"cachedRecommendations,omitempty"`
	// RecommendationDigest fingerprints the rated set the cache was generated from.
	RecommendationDigest string `json:"recommendationDigest,omitempty"`

	LikedGames    []Game `json:"likedGames,omitempty"`
	DislikedGames []Game `json:"dislikedGames,omitempty"`
}

// IsLegacy reports whether the record still has the liked/disliked shape.
func (p *UserPreferences) IsLegacy() bool {
	return p.RatedGames == nil && (p.LikedGames != nil || p.DislikedGames != nil)
}

// Clone returns a deep enough copy for read-modify-write cycles.
func (p *UserPreferences) Clone() *UserPreferences {
	if p == nil {
		return nil
	}
	clone := *p
	clone.RatedGames = slices.Clone(p.RatedGames)
	clone.CachedRecommendations = slices.Clone(p.CachedRecommendations)
	clone.LikedGames = slices.Clone(p.LikedGames)
	clone.DislikedGames = slices.Clone(p.DislikedGames)
	if p.LastRecommendationRefresh != nil {
		ts := *p.LastRecommendationRefresh
		clone.LastRecommendationRefresh = &ts
	}
	return &clone
}

// UserPreferencesRecord is a stored preferences record with its version.
type UserPreferencesRecord struct {
	UserID      string
	Preferences *UserPreferences
	Version     int64
	UpdatedTs   int64
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID string
}

// UpsertUserPreferences specifies the data for upserting user preferences.
type UpsertUserPreferences struct {
	UserID      string
	Preferences *UserPreferences
	// ExpectedVersion turns the write into a compare-and-swap. Zero means "must not exist".
	ExpectedVersion *int64
}

// GetUserPreferences returns nil without error if the user has no record.
func (s *Store) GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferencesRecord, error) {
	prefs := &UserPreferences{}
	entry, err := s.get(ctx, userPreferencesKey(find.UserID), prefs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &UserPreferencesRecord{
		UserID:      find.UserID,
		Preferences: prefs,
		Version:     entry.Version,
		UpdatedTs:   entry.UpdatedTs,
	}, nil
}

// UpsertUserPreferences overwrites the whole record. With ExpectedVersion set it
// returns ErrVersionConflict when the stored version moved on.
func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferencesRecord, error) {
	entry, err := s.put(ctx, userPreferencesKey(upsert.UserID), upsert.Preferences, upsert.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	return &UserPreferencesRecord{
		UserID:      upsert.UserID,
		Preferences: upsert.Preferences,
		Version:     entry.Version,
		UpdatedTs:   entry.UpdatedTs,
	}, nil
}

// DeleteUserPreferences removes the record; absent records are not an error.
func (s *Store) DeleteUserPreferences(ctx context.Context, userID string) error {
	return s.delete(ctx, userPreferencesKey(userID))
}
