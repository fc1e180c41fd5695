package test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gamelogd/store"
)

// RunDriverSuite checks the key-value contract every store.Driver must honor.
// newDriver must return an empty driver; it is called once per subtest.
func RunDriverSuite(t *testing.T, newDriver func(t *testing.T) store.Driver) {
	t.Run("GetMissing", func(t *testing.T) {
		d := newDriver(t)
		entry, err := d.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("SetBumpsVersion", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		first, err := d.Set(ctx, "k", []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.Version)

		second, err := d.Set(ctx, "k", []byte(`{"a":2}`))
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.Version)

		got, err := d.Get(ctx, "k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "k", got.Key)
		assert.JSONEq(t, `{"a":2}`, string(got.Value))
		assert.Equal(t, int64(2), got.Version)
		assert.NotZero(t, got.UpdatedTs)
	})

	t.Run("CompareAndSwapCreate", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		created, err := d.CompareAndSwap(ctx, "k", []byte("1"), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)

		_, err = d.CompareAndSwap(ctx, "k", []byte("2"), 0)
		assert.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("CompareAndSwapUpdate", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		_, err := d.Set(ctx, "k", []byte("1"))
		require.NoError(t, err)

		updated, err := d.CompareAndSwap(ctx, "k", []byte("2"), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		_, err = d.CompareAndSwap(ctx, "k", []byte("3"), 1)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		got, err := d.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got.Value))
	})

	t.Run("CompareAndSwapMissingKey", func(t *testing.T) {
		d := newDriver(t)
		_, err := d.CompareAndSwap(context.Background(), "k", []byte("1"), 3)
		assert.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		_, err := d.Set(ctx, "k", []byte("1"))
		require.NoError(t, err)
		require.NoError(t, d.Delete(ctx, "k"))
		require.NoError(t, d.Delete(ctx, "k"), "deleting an absent key is a no-op")

		got, err := d.Get(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, got)

		// Versions restart after a delete.
		entry, err := d.CompareAndSwap(ctx, "k", []byte("1"), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.Version)
	})

	t.Run("ListKeys", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		for _, key := range []string{"notes:u1:2", "notes:u1:1", "notes:u10:1", "notes:U1:1", "user:u1", "notes:u1_x:1"} {
			_, err := d.Set(ctx, key, []byte("{}"))
			require.NoError(t, err)
		}

		keys, err := d.ListKeys(ctx, "notes:u1:")
		require.NoError(t, err)
		assert.Equal(t, []string{"notes:u1:1", "notes:u1:2"}, keys)

		keys, err = d.ListKeys(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("ConcurrentCompareAndSwapHasOneWinner", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		_, err := d.Set(ctx, "k", []byte("0"))
		require.NoError(t, err)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := d.CompareAndSwap(ctx, "k", []byte(fmt.Sprint(i)), 1)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("Ping", func(t *testing.T) {
		d := newDriver(t)
		assert.NoError(t, d.Ping(context.Background()))
	})
}
