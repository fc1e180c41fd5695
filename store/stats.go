package store

import "context"

// Stats counts the records held by the store.
type Stats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalPreferences int `json:"totalPreferences"`
	TotalNotes       int `json:"totalNotes"`
	TotalCachedGames int `json:"totalCachedGames"`
}

// GetStats counts keys per record prefix.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for _, counter := range []struct {
		prefix string
		total  *int
	}{
		{UserKeyPrefix, &stats.TotalUsers},
		{UserPreferencesKeyPrefix, &stats.TotalPreferences},
		{GameNoteKeyPrefix, &stats.TotalNotes},
		{GameCacheKeyPrefix, &stats.TotalCachedGames},
	} {
		keys, err := s.listKeys(ctx, counter.prefix)
		if err != nil {
			return nil, err
		}
		*counter.total = len(keys)
	}
	return stats, nil
}
