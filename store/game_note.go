package store

import (
	"context"
	"time"
)

// GameNote is a free-form note a user keeps about one game.
type GameNote struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	UserID    string    `json:"userId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FindGameNote specifies the note to look up.
type FindGameNote struct {
	UserID string
	GameID string
}

// GetGameNote returns nil without error if the user has no note for the game.
func (s *Store) GetGameNote(ctx context.Context, find *FindGameNote) (*GameNote, error) {
	note := &GameNote{}
	entry, err := s.get(ctx, gameNoteKey(find.UserID, find.GameID), note)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return note, nil
}

// UpsertGameNote stores the note under its (user, game) pair.
func (s *Store) UpsertGameNote(ctx context.Context, upsert *GameNote) (*GameNote, error) {
	if _, err := s.put(ctx, gameNoteKey(upsert.UserID, upsert.GameID), upsert, nil); err != nil {
		return nil, err
	}
	return upsert, nil
}

// ListGameNotes returns every note of a user.
func (s *Store) ListGameNotes(ctx context.Context, userID string) ([]*GameNote, error) {
	keys, err := s.listKeys(ctx, gameNotePrefix(userID))
	if err != nil {
		return nil, err
	}

	list := make([]*GameNote, 0, len(keys))
	for _, key := range keys {
		note := &GameNote{}
		entry, err := s.get(ctx, key, note)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			list = append(list, note)
		}
	}
	return list, nil
}

// DeleteGameNote removes a note; absent notes are not an error.
func (s *Store) DeleteGameNote(ctx context.Context, find *FindGameNote) error {
	return s.delete(ctx, gameNoteKey(find.UserID, find.GameID))
}
