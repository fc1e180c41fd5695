package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/store"
)

// ErrDegraded is returned when a write missed the primary store and landed in
// the fallback store. The edit is not lost, but it does not survive a restart.
var ErrDegraded = errors.New("preferences saved to fallback storage")

// Snapshot is a loaded preferences record.
type Snapshot struct {
	Preferences *store.UserPreferences
	// Version is the primary store version, 0 when the primary has no record.
	Version int64
	// Fallback is set when the preferences were served from the fallback store.
	Fallback bool
}

// Exists reports whether a record was found in either store.
func (s *Snapshot) Exists() bool {
	return s.Version > 0 || s.Fallback
}

// PreferenceStore loads and saves whole preference records, migrating legacy
// records on read and diverting writes to a fallback store when the primary fails.
type PreferenceStore struct {
	primary  *store.Store
	fallback *store.Store
	now      func() time.Time
}

// NewPreferenceStore creates a PreferenceStore. fallback may be nil, in which
// case primary write failures are returned as is.
func NewPreferenceStore(primary, fallback *store.Store, now func() time.Time) *PreferenceStore {
	if now == nil {
		now = time.Now
	}
	return &PreferenceStore{
		primary:  primary,
		fallback: fallback,
		now:      now,
	}
}

// Load returns the user's preferences. An absent record yields empty
// preferences with version 0. Legacy records are migrated and written back.
func (s *PreferenceStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	record, primaryErr := s.primary.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: userID})

	var version int64
	if record != nil {
		version = record.Version
	}

	// A fallback copy only exists while the primary missed the latest write.
	if s.fallback != nil {
		fallbackRecord, err := s.fallback.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: userID})
		if err == nil && fallbackRecord != nil {
			if primaryErr != nil {
				observability.Logger(ctx).Warn("serving preferences from fallback store",
					slog.String("user_id", userID), slog.String("error", primaryErr.Error()))
			}
			return &Snapshot{
				Preferences: normalize(fallbackRecord.Preferences),
				Version:     version,
				Fallback:    true,
			}, nil
		}
	}
	if primaryErr != nil {
		return nil, fmt.Errorf("load preferences: %w", primaryErr)
	}

	if record == nil {
		return &Snapshot{Preferences: &store.UserPreferences{RatedGames: []store.RatedGame{}}}, nil
	}

	if !record.Preferences.IsLegacy() {
		return &Snapshot{Preferences: normalize(record.Preferences), Version: version}, nil
	}

	migrated := Migrate(record.Preferences, s.now())
	snapshot, err := s.SaveIfVersion(ctx, userID, migrated, version)
	switch {
	case err == nil:
		observability.PreferenceMigrationsTotal.Inc()
		return snapshot, nil
	case errors.Is(err, ErrDegraded):
		return snapshot, nil
	case errors.Is(err, store.ErrVersionConflict):
		// Someone else wrote the record in the meantime, so it is no longer legacy.
		return s.Load(ctx, userID)
	default:
		return nil, fmt.Errorf("persist migrated preferences: %w", err)
	}
}

// Save overwrites the user's record. The last writer wins.
//
// When the primary store fails and a fallback is configured, the record is
// written there and the returned error wraps ErrDegraded; the snapshot is
// valid in that case.
func (s *PreferenceStore) Save(ctx context.Context, userID string, prefs *store.UserPreferences) (*Snapshot, error) {
	return s.save(ctx, userID, prefs, nil)
}

// SaveIfVersion overwrites the record only if the primary still holds version.
// It returns store.ErrVersionConflict otherwise.
func (s *PreferenceStore) SaveIfVersion(ctx context.Context, userID string, prefs *store.UserPreferences, version int64) (*Snapshot, error) {
	return s.save(ctx, userID, prefs, &version)
}

func (s *PreferenceStore) save(ctx context.Context, userID string, prefs *store.UserPreferences, version *int64) (*Snapshot, error) {
	prefs = normalize(prefs)
	record, err := s.primary.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{
		UserID:          userID,
		Preferences:     prefs,
		ExpectedVersion: version,
	})
	if err == nil {
		observability.RecordPreferenceWrite(observability.WritePrimary)
		if s.fallback != nil {
			if err := s.fallback.DeleteUserPreferences(ctx, userID); err != nil {
				observability.Logger(ctx).Warn("failed to clear fallback preferences", slog.String("user_id", userID), slog.String("error", err.Error()))
			}
		}
		return &Snapshot{Preferences: prefs, Version: record.Version}, nil
	}
	if errors.Is(err, store.ErrVersionConflict) {
		observability.RecordPreferenceWrite(observability.WriteConflict)
		return nil, err
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}

	if _, fallbackErr := s.fallback.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{
		UserID:      userID,
		Preferences: prefs,
	}); fallbackErr != nil {
		return nil, fmt.Errorf("save preferences: %w (fallback: %v)", err, fallbackErr)
	}
	observability.RecordPreferenceWrite(observability.WriteFallback)
	observability.Logger(ctx).Warn("primary store write failed, preferences kept in fallback store",
		slog.String("user_id", userID), slog.String("error", err.Error()))

	var current int64
	if version != nil {
		current = *version
	}
	return &Snapshot{Preferences: prefs, Version: current, Fallback: true}, fmt.Errorf("%w: %w", ErrDegraded, err)
}

// normalize makes sure ratedGames is encoded as an empty list rather than null.
func normalize(prefs *store.UserPreferences) *store.UserPreferences {
	if prefs == nil {
		return &store.UserPreferences{RatedGames: []store.RatedGame{}}
	}
	if prefs.RatedGames == nil && !prefs.IsLegacy() {
		prefs.RatedGames = []store.RatedGame{}
	}
	return prefs
}
