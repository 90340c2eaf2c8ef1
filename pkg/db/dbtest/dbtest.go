// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/fluxorio/todoapi/pkg/db"
)

// Open returns a fresh, migrated in-memory database that is closed when t finishes
func Open(t testing.TB) *sql.DB {
	t.Helper()
	return OpenPool(t).DB()
}

// OpenPool is Open but returns the *db.Pool
func OpenPool(t testing.TB) *db.Pool {
	t.Helper()

	pool, err := db.NewPool(db.DefaultPoolConfig(":memory:", db.DriverSQLite))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if _, err := db.Migrate(context.Background(), pool.DB(), pool.Dialect()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
