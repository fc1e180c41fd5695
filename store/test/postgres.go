package test

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testUser     = "testuser"
	testPassword = "testpassword"
)

// GetPostgresDSN returns a DSN for PostgreSQL testing.
//
// POSTGRES_TEST_DSN points at an existing database. Otherwise, when
// GAMELOGD_TEST_CONTAINERS=1, a fresh container is started for the test.
// The test is skipped when neither is set.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()

	// Check if a custom DSN is provided via environment variable
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn
	}
	if os.Getenv("GAMELOGD_TEST_CONTAINERS") != "1" {
		t.Skip("set POSTGRES_TEST_DSN or GAMELOGD_TEST_CONTAINERS=1 to run PostgreSQL tests")
	}

	// Use testcontainers for automated testing
	pgContainer, err := postgres.Run(t.Context(),
		"postgres:16-alpine",
		postgres.WithDatabase("gamelogd_test"),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	return connStr
}

// GetRedisAddr returns REDIS_TEST_ADDR or skips the test.
func GetRedisAddr(t *testing.T) string {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run Redis tests")
	}
	return addr
}
