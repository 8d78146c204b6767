// Package dbtest opens migrated SQLite databases for tests of the packages built on app/database.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/constituant/constituant/app/database"
)

func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.NewConnection("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
