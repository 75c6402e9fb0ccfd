package testutil

import (
	"path/filepath"
	"testing"

	"github.com/aouyang1/inkframe/store"
)

// NewTestDatabase creates a SQLite database in a temp dir with migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *store.Database {
	t.Helper()

	db, err := store.NewDatabase(filepath.Join(t.TempDir(), "inkframe.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// MustInsertCategory stores a category linked to folders and returns its id.
func MustInsertCategory(t *testing.T, db *store.Database, name string, folders ...string) int64 {
	t.Helper()

	id, err := db.InsertCategory(&store.Category{Name: name, LinkedFolders: folders})
	if err != nil {
		t.Fatalf("InsertCategory(%q) error = %v", name, err)
	}
	return id
}

// MustInsertFrame stores f and returns its id.
func MustInsertFrame(t *testing.T, db *store.Database, f store.Frame) int64 {
	t.Helper()

	if f.ScreenType == "" {
		f.ScreenType = DefaultScreenType
	}
	id, err := db.InsertFrame(&f)
	if err != nil {
		t.Fatalf("InsertFrame(%q) error = %v", f.Code, err)
	}
	return id
}

// DefaultScreenType is seeded by the first migration.
const DefaultScreenType = "6 Color Spectra 7.3 inch Horizontal"
