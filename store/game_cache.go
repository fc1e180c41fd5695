package store

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// CachedGame is a metadata payload shared by every user, stored under game_cache:<id>.
type CachedGame struct {
	GameData json.RawMessage `json:"gameData"`
	CachedAt time.Time       `json:"cachedAt"`
}

// GetCachedGame returns nil without error on a cache miss.
func (s *Store) GetCachedGame(ctx context.Context, gameID string) (*CachedGame, error) {
	cached := &CachedGame{}
	entry, err := s.get(ctx, gameCacheKey(gameID), cached)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return cached, nil
}

// SetCachedGame overwrites the cached payload for a game.
func (s *Store) SetCachedGame(ctx context.Context, gameID string, cached *CachedGame) error {
	_, err := s.put(ctx, gameCacheKey(gameID), cached, nil)
	return err
}
