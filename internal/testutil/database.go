package testutil

import (
	"testing"

	"acta-go/internal/database"
)

// NewTestDatabase opens a migrated in-memory journal that is closed when
// the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
