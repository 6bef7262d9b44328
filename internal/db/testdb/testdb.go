// Package testdb provides throwaway migrated databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pulse-analytics/pulse/internal/db"
)

// RunWhile opens a fresh SQLite database for the duration of the test, with
// all migrations applied. The database is closed on test cleanup.
func RunWhile(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	database, err := db.Init("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		err := database.Close()
		if err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	err = db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return database
}
