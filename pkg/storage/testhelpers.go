package storage

import (
	"context"
	"database/sql"
	"testing"
)

// NewTestDB opens a migrated in-memory sqlite database that is closed when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, dialect, err := Open(context.Background(), Options{
		Driver: string(DialectSQLite),
		URL:    ":memory:?_foreign_keys=on",
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db, dialect); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}
