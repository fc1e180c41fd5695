package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/gamelogd/store"
)

// DB keeps every entry in a process-local map. Nothing survives a restart.
type DB struct {
	mu      sync.RWMutex
	entries map[string]*store.Entry
}

var _ store.Driver = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		entries: make(map[string]*store.Entry),
	}
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (d *DB) Get(ctx context.Context, key string) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[key]
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var version int64
	if existing, ok := d.entries[key]; ok {
		version = existing.Version
	}
	return d.write(key, value, version+1), nil
}

func (d *DB) CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var current int64
	if existing, ok := d.entries[key]; ok {
		current = existing.Version
	}
	if current != version {
		return nil, store.ErrVersionConflict
	}
	return d.write(key, value, version+1), nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, key)
	return nil
}

func (d *DB) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := []string{}
	for key := range d.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// write must be called with mu held.
func (d *DB) write(key string, value []byte, version int64) *store.Entry {
	entry := &store.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   version,
		UpdatedTs: time.Now().Unix(),
	}
	d.entries[key] = entry
	return copyEntry(entry)
}

func copyEntry(entry *store.Entry) *store.Entry {
	clone := *entry
	clone.Value = append([]byte(nil), entry.Value...)
	return &clone
}
