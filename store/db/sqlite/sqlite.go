package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
)

// ============================================================================
// SQLITE SUPPORT (Single node)
// ============================================================================
// SQLite is the default driver: one file under the data directory, no
// external service. Writes are serialized by SQLite itself, so a single
// connection is used to avoid SQLITE_BUSY under concurrent requests.
// ============================================================================

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT NOT NULL PRIMARY KEY,
	value BLOB NOT NULL,
	version INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL
)`

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens db with profile.DSN and creates the kv table if needed.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	sqliteDB.SetMaxOpenConns(1)

	if _, err := sqliteDB.ExecContext(context.Background(), schema); err != nil {
		sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to migrate kv table")
	}

	var driver store.Driver = &DB{
		db:      sqliteDB,
		profile: profile,
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return nil
}
