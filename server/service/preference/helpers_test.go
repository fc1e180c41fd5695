package preference

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db/memory"
)

var errPrimaryDown = errors.New("primary unavailable")

// flakyDriver wraps the memory driver and can be told to fail writes.
type flakyDriver struct {
	*memory.DB
	failWrites     atomic.Bool
	alwaysConflict atomic.Bool
}

func (d *flakyDriver) Set(ctx context.Context, key string, value []byte) (*store.Entry, error) {
	if d.failWrites.Load() {
		return nil, errPrimaryDown
	}
	return d.DB.Set(ctx, key, value)
}

func (d *flakyDriver) CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*store.Entry, error) {
	if d.failWrites.Load() {
		return nil, errPrimaryDown
	}
	if d.alwaysConflict.Load() {
		return nil, store.ErrVersionConflict
	}
	return d.DB.CompareAndSwap(ctx, key, value, version)
}

type fixture struct {
	driver     *flakyDriver
	primary    *store.Store
	prefStore  *PreferenceStore
	reconciler *Reconciler
	now        time.Time
}

func newFixture(t *testing.T, strategyName string) *fixture {
	t.Helper()

	f := &fixture{
		driver: &flakyDriver{DB: memory.NewDB()},
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.primary = store.New(f.driver, &profile.Profile{})
	fallback := store.New(memory.NewDB(), &profile.Profile{})
	t.Cleanup(func() {
		_ = f.primary.Close()
		_ = fallback.Close()
	})

	clock := func() time.Time { return f.now }
	f.prefStore = NewPreferenceStore(f.primary, fallback, clock)
	strategy, err := NewStrategy(strategyName, f.prefStore)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	f.reconciler = NewReconciler(f.prefStore, strategy, clock)
	return f
}

func game(id, title string) store.Game {
	return store.Game{ID: id, Title: title}
}
