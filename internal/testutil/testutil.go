// Package testutil provides a temp-directory-backed storage.DB fixture for
// package tests, adapted from the teacher's internal/testutil (itself a
// thin t.TempDir()-backed SQLite helper) to construct this module's own
// *storage.DB with schema already applied.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/memoryengine/memoryengine/internal/storage"
)

// NewDB opens a fresh *storage.DB in a t.TempDir()-backed SQLite file with
// the schema applied, closing it automatically at test cleanup.
func NewDB(t *testing.T) *storage.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		t.Fatalf("failed to init schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
