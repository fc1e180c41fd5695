package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db/badgerdb"
	"github.com/hrygo/gamelogd/store/db/memory"
	"github.com/hrygo/gamelogd/store/db/postgres"
	"github.com/hrygo/gamelogd/store/db/redisdb"
	"github.com/hrygo/gamelogd/store/db/sqlite"
)

// ============================================================================
// DRIVER SUPPORT POLICY
// ============================================================================
// Every driver implements the same key-value contract, including
// compare-and-swap on the entry version.
//
// memory:   tests and throwaway demos, nothing is persisted.
// sqlite:   default single-node deployment.
// badger:   embedded key-value store, no SQL layer.
// postgres: multi-instance deployments sharing one database.
// redis:    multi-instance deployments that already run Redis.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "memory":
		driver = memory.NewDB()
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "badger":
		driver, err = badgerdb.NewDB(profile)
	case "redis":
		driver, err = redisdb.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %q", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
