package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by CompareAndSwap when the stored version
// no longer matches the expected one.
var ErrVersionConflict = errors.New("version conflict")

// Entry is a single key-value record as held by a driver.
type Entry struct {
	Key   string
	Value []byte
	// Version starts at 1 and is incremented on every write.
	Version   int64
	UpdatedTs int64
}

// Driver is an interface for store driver.
// It contains all methods that store key-value backend should implement.
type Driver interface {
	Close() error
	Ping(ctx context.Context) error

	// Get returns nil without error when the key is absent.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set overwrites the value unconditionally and bumps the version.
	Set(ctx context.Context, key string, value []byte) (*Entry, error)
	// CompareAndSwap writes only if the stored version equals version.
	// A version of 0 means the key must not exist yet.
	CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*Entry, error)
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// ListKeys returns every key starting with prefix, sorted.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
