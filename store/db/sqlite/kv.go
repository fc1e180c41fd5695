package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/gamelogd/store"
)

func (d *DB) Get(ctx context.Context, key string) (*store.Entry, error) {
	query := `SELECT key, value, version, updated_ts FROM kv WHERE key = ` + placeholder(1)

	entry := &store.Entry{}
	err := d.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key,
		&entry.Value,
		&entry.Version,
		&entry.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get kv entry")
	}
	return entry, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) (*store.Entry, error) {
	stmt := `INSERT INTO kv (key, value, version, updated_ts) VALUES (` + placeholders(2) + `, 1, ` + placeholder(3) + `)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			version = kv.version + 1,
			updated_ts = excluded.updated_ts
		RETURNING version, updated_ts`

	entry := &store.Entry{Key: key, Value: value}
	if err := d.db.QueryRowContext(ctx, stmt, key, value, time.Now().Unix()).Scan(&entry.Version, &entry.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to set kv entry")
	}
	return entry, nil
}

func (d *DB) CompareAndSwap(ctx context.Context, key string, value []byte, version int64) (*store.Entry, error) {
	now := time.Now().Unix()
	entry := &store.Entry{Key: key, Value: value}

	var row *sql.Row
	if version == 0 {
		stmt := `INSERT INTO kv (key, value, version, updated_ts) VALUES (` + placeholders(2) + `, 1, ` + placeholder(3) + `)
			ON CONFLICT (key) DO NOTHING
			RETURNING version, updated_ts`
		row = d.db.QueryRowContext(ctx, stmt, key, value, now)
	} else {
		stmt := `UPDATE kv SET value = ` + placeholder(1) + `, version = version + 1, updated_ts = ` + placeholder(2) + `
			WHERE key = ` + placeholder(3) + ` AND version = ` + placeholder(4) + `
			RETURNING version, updated_ts`
		row = d.db.QueryRowContext(ctx, stmt, value, now, key, version)
	}

	if err := row.Scan(&entry.Version, &entry.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVersionConflict
		}
		return nil, errors.Wrap(err, "failed to compare and swap kv entry")
	}
	return entry, nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE key = `+placeholder(1), key); err != nil {
		return errors.Wrap(err, "failed to delete kv entry")
	}
	return nil
}

func (d *DB) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM kv WHERE key LIKE ` + placeholder(1) + ` ESCAPE '\' ORDER BY key`
	rows, err := d.db.QueryContext(ctx, query, likePrefix(prefix))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list kv keys")
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
