package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hrygo/gamelogd/internal/profile"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

// DefaultOptimisticAttempts bounds compare-and-swap retries.
const DefaultOptimisticAttempts = 5

// UpdateFunc mutates a private copy of the user's preferences. It returns false
// when nothing changed and the write can be skipped.
type UpdateFunc func(prefs *store.UserPreferences) (changed bool, err error)

// Strategy runs a read-modify-write cycle on a user's preferences record.
type Strategy interface {
	Update(ctx context.Context, userID string, fn UpdateFunc) (*Snapshot, error)
}

// NewStrategy returns the strategy named by the profile setting.
func NewStrategy(name string, ps *PreferenceStore) (Strategy, error) {
	switch name {
	case profile.ConcurrencyNone:
		return &NoLockStrategy{store: ps}, nil
	case profile.ConcurrencyMutex, "":
		return NewMutexStrategy(ps), nil
	case profile.ConcurrencyOptimistic:
		return &OptimisticStrategy{store: ps, MaxAttempts: DefaultOptimisticAttempts}, nil
	default:
		return nil, fmt.Errorf("unknown concurrency strategy %q", name)
	}
}

// NoLockStrategy loads, modifies and saves without coordination.
// Concurrent edits to the same user may overwrite each other.
type NoLockStrategy struct {
	store *PreferenceStore
}

func (s *NoLockStrategy) Update(ctx context.Context, userID string, fn UpdateFunc) (*Snapshot, error) {
	return apply(ctx, s.store, userID, fn, false)
}

// MutexStrategy serializes updates per user within this process.
type MutexStrategy struct {
	store *PreferenceStore
	locks *keyedMutex
}

func NewMutexStrategy(ps *PreferenceStore) *MutexStrategy {
	return &MutexStrategy{store: ps, locks: newKeyedMutex()}
}

func (s *MutexStrategy) Update(ctx context.Context, userID string, fn UpdateFunc) (*Snapshot, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return apply(ctx, s.store, userID, fn, false)
}

// OptimisticStrategy writes with compare-and-swap on the record version and
// retries the whole cycle when another writer got there first.
type OptimisticStrategy struct {
	store       *PreferenceStore
	MaxAttempts int
}

func (s *OptimisticStrategy) Update(ctx context.Context, userID string, fn UpdateFunc) (*Snapshot, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultOptimisticAttempts
	}
	for i := 0; i < attempts; i++ {
		snapshot, err := apply(ctx, s.store, userID, fn, true)
		if !errors.Is(err, store.ErrVersionConflict) {
			return snapshot, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, apperrors.Conflict("Preferences were changed concurrently, please retry", store.ErrVersionConflict)
}

func apply(ctx context.Context, ps *PreferenceStore, userID string, fn UpdateFunc, conditional bool) (*Snapshot, error) {
	current, err := ps.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := current.Preferences.Clone()
	changed, err := fn(prefs)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current, nil
	}
	if conditional {
		return ps.SaveIfVersion(ctx, userID, prefs, current.Version)
	}
	return ps.Save(ctx, userID, prefs)
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size is the number of keys currently tracked.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
