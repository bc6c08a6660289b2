package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/accordhq/go-accord-backend/internal/domain"
)

// testDB opens a fresh migrated SQLite database under t.TempDir.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accord.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "accord.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_PragmasAndMigration(t *testing.T) {
	db := testDB(t)

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("journal_mode = %s; want wal", journalMode)
	}

	var busyMS int
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("busy_timeout = %d; want 5000", busyMS)
	}

	// Migration must have produced all four tables.
	for _, table := range []string{"conflicts", "conflict_items", "conflict_events", "idempotency"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %q after migration", table)
		}
	}

	// Sanity: a round trip through the conflicts table works.
	c := &domain.Conflict{ID: "id-1", Slug: "slug-1", CreatorID: "u1", Title: "t", Status: domain.StatusPending, Version: 1}
	if err := CreateConflict(context.Background(), db, c); err != nil {
		t.Fatalf("CreateConflict: %v", err)
	}
	got, err := GetConflictBySlug(context.Background(), db, "slug-1")
	if err != nil {
		t.Fatalf("GetConflictBySlug: %v", err)
	}
	if got.ID != "id-1" || got.CreatorID != "u1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
