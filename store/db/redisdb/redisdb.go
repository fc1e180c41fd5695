package redisdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
)

// KeyPrefix namespaces every key so the database can be shared with other services.
const KeyPrefix = "gamelogd:"

const (
	fieldValue     = "value"
	fieldVersion   = "version"
	fieldUpdatedTs = "updated_ts"
)

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// DB stores each entry as a hash. Compare-and-swap uses WATCH/MULTI.
type DB struct {
	client *redis.Client
}

var _ store.Driver = (*DB)(nil)

// NewDB creates a new Redis driver and verifies the connection.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     profile.RedisAddr,
		Password: profile.RedisPassword,
		DB:       profile.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewDBFromClient(client), nil
}

// NewDBFromClient wraps an existing client. Close closes the client.
func NewDBFromClient(client *redis.Client) *DB {
	return &DB{client: client}
}

func (d *DB) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *DB) Get(ctx context.Context, key string) (*store.Entry, error) {
	fields, err := d.client.HGetAll(ctx, KeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version of %s: %w", key, err)
	}
	updatedTs, _ := strconv.ParseInt(fields[fieldUpdatedTs], 10, 64)

	return &store.Entry{
		Key:       key,
		Value:     []byte(fields[fieldValue]),
		Version:   version,
		UpdatedTs: updatedTs,
	}, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) (*store.Entry, error) {
	now := time.Now().Unix()
	var incr *redis.IntCmd
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, KeyPrefix+key, fieldVersion, 1)
		pipe.HSet(ctx, KeyPrefix+key, fieldValue, value, fieldUpdatedTs, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}

	return &store.Entry{
		Key:       key,
		Value:     value,
		Version:   incr.Val(),
		UpdatedTs: now,
	}, nil
}

func (d *DB) CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*store.Entry, error) {
	now := time.Now().Unix()
	redisKey := KeyPrefix + key

	err := d.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, redisKey, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			stored = 0
		} else if err != nil {
			return err
		}
		if stored != version {
			return store.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, fieldValue, value, fieldVersion, version+1, fieldUpdatedTs, now)
			return nil
		})
		return err
	}, redisKey)
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, store.ErrVersionConflict) {
		return nil, store.ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("compare and swap %s: %w", key, err)
	}

	return &store.Entry{
		Key:       key,
		Value:     value,
		Version:   version + 1,
		UpdatedTs: now,
	}, nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	return d.client.Del(ctx, KeyPrefix+key).Err()
}

func (d *DB) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	pattern := globEscaper.Replace(KeyPrefix+prefix) + "*"

	keys := []string{}
	iter := d.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}
