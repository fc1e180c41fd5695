package store

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store/cache"
)

// ErrNotFound is returned when a record that must exist is absent.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating a record whose unique key is taken.
var ErrAlreadyExists = errors.New("already exists")

const defaultOpTimeout = 5 * time.Second

// Store provides typed access to all records kept in the key-value driver.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	userCache *cache.Cache // cache for users, keyed by id
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	// Default cache settings
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	store := &Store{
		driver:      driver,
		profile:     profile,
		cacheConfig: cacheConfig,
		userCache:   cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.driver.Ping(ctx)
}

func (s *Store) Close() error {
	// Stop all cache cleanup goroutines
	s.userCache.Close()

	return s.driver.Close()
}

// withTimeout bounds a single driver round trip.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := defaultOpTimeout
	if s.profile != nil && s.profile.StoreTimeout > 0 {
		timeout = s.profile.StoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Store) get(ctx context.Context, key string, dest any) (*Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.driver.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", key)
	}
	if entry == nil {
		return nil, nil
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", key)
	}
	return entry, nil
}

// put writes value under key. A nil version overwrites unconditionally.
func (s *Store) put(ctx context.Context, key string, value any, version *int64) (*Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", key)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var entry *Entry
	if version == nil {
		entry, err = s.driver.Set(ctx, key, data)
	} else {
		entry, err = s.driver.CompareAndSwap(ctx, key, data, *version)
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to set %s", key)
	}
	return entry, nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.driver.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.driver.ListKeys(ctx, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s*", prefix)
	}
	return keys, nil
}
