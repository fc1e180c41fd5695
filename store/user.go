package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// User is an account able to rate games.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FindUser specifies the conditions for finding a user. Exactly one field should be set.
type FindUser struct {
	ID    *string
	Email *string
}

// DeleteUser specifies the user to delete.
type DeleteUser struct {
	ID string
}

// CreateUser stores the user, claims its email and seeds empty preferences.
// Returns ErrAlreadyExists if the email is taken.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	if create.ID == "" || create.Email == "" {
		return nil, errors.New("user id and email are required")
	}
	create.Email = normalizeEmail(create.Email)
	if create.CreatedAt.IsZero() {
		create.CreatedAt = time.Now().UTC()
	}

	// Claiming the email index first makes concurrent registrations race on a single key.
	claim := int64(0)
	if _, err := s.put(ctx, userEmailKey(create.Email), create.ID, &claim); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	if _, err := s.put(ctx, userKey(create.ID), create, nil); err != nil {
		_ = s.delete(ctx, userEmailKey(create.Email))
		return nil, err
	}

	if _, err := s.UpsertUserPreferences(ctx, &UpsertUserPreferences{
		UserID:      create.ID,
		Preferences: &UserPreferences{RatedGames: []RatedGame{}},
	}); err != nil {
		return nil, err
	}

	s.userCache.Set(ctx, create.ID, create)
	return create, nil
}

// GetUser returns nil without error if the user does not exist.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	id := ""
	switch {
	case find.ID != nil:
		id = *find.ID
	case find.Email != nil:
		var mapped string
		entry, err := s.get(ctx, userEmailKey(*find.Email), &mapped)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		id = mapped
	default:
		return nil, errors.New("user id or email is required")
	}

	if cached, ok := s.userCache.Get(ctx, id); ok {
		if user, ok := cached.(*User); ok {
			return user, nil
		}
	}

	user := &User{}
	entry, err := s.get(ctx, userKey(id), user)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	s.userCache.Set(ctx, user.ID, user)
	return user, nil
}

// ListUsers returns every user, ordered by key.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	keys, err := s.listKeys(ctx, UserKeyPrefix)
	if err != nil {
		return nil, err
	}

	list := make([]*User, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, UserKeyPrefix)
		user, err := s.GetUser(ctx, &FindUser{ID: &id})
		if err != nil {
			return nil, err
		}
		if user != nil {
			list = append(list, user)
		}
	}
	return list, nil
}

// DeleteUser removes the user together with its email mapping, preferences and notes.
func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) error {
	user, err := s.GetUser(ctx, &FindUser{ID: &delete.ID})
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}

	noteKeys, err := s.listKeys(ctx, gameNotePrefix(user.ID))
	if err != nil {
		return err
	}
	keys := append([]string{userPreferencesKey(user.ID), userEmailKey(user.Email)}, noteKeys...)
	keys = append(keys, userKey(user.ID))
	for _, key := range keys {
		if err := s.delete(ctx, key); err != nil {
			return err
		}
	}

	s.userCache.Delete(ctx, user.ID)
	return nil
}
