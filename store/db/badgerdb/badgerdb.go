package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
)

const maxSetAttempts = 5

// envelope is the on-disk value: the payload plus the bookkeeping a driver needs.
type envelope struct {
	Value     []byte `json:"v"`
	Version   int64  `json:"n"`
	UpdatedTs int64  `json:"t"`
}

// DB is an embedded BadgerDB driver. Each write runs in its own transaction,
// so compare-and-swap is enforced by Badger's conflict detection.
type DB struct {
	db *badger.DB
}

var _ store.Driver = (*DB)(nil)

// NewDB opens a BadgerDB at profile.DSN. An empty DSN or ":memory:" opens an in-memory instance.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	var opts badger.Options
	if profile.DSN == "" || profile.DSN == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(profile.DSN)
		opts.SyncWrites = true
	}
	opts.Logger = nil // Suppress BadgerDB internal logs
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	if d.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return ctx.Err()
}

func (d *DB) Get(ctx context.Context, key string) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *store.Entry
	err := d.db.View(func(txn *badger.Txn) error {
		env, err := readEnvelope(txn, key)
		if err != nil || env == nil {
			return err
		}
		entry = toEntry(key, env)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		entry *store.Entry
		err   error
	)
	// A concurrent writer can win the transaction; an unconditional set just tries again.
	for attempt := 0; attempt < maxSetAttempts; attempt++ {
		err = d.db.Update(func(txn *badger.Txn) error {
			current, err := readEnvelope(txn, key)
			if err != nil {
				return err
			}
			var version int64
			if current != nil {
				version = current.Version
			}
			entry, err = writeEnvelope(txn, key, value, version+1)
			return err
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (d *DB) CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *store.Entry
	err := d.db.Update(func(txn *badger.Txn) error {
		current, err := readEnvelope(txn, key)
		if err != nil {
			return err
		}
		var stored int64
		if current != nil {
			stored = current.Version
		}
		if stored != version {
			return store.ErrVersionConflict
		}
		entry, err = writeEnvelope(txn, key, value, version+1)
		return err
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, store.ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return d.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Already deleted
		}
		return err
	})
}

func (d *DB) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := []string{}
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func readEnvelope(txn *badger.Txn, key string) (*envelope, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	env := &envelope{}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, env)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return env, nil
}

func writeEnvelope(txn *badger.Txn, key string, value []byte, version int64) (*store.Entry, error) {
	env := &envelope{
		Value:     value,
		Version:   version,
		UpdatedTs: time.Now().Unix(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}
	return toEntry(key, env), nil
}

func toEntry(key string, env *envelope) *store.Entry {
	return &store.Entry{
		Key:       key,
		Value:     env.Value,
		Version:   env.Version,
		UpdatedTs: env.UpdatedTs,
	}
}
