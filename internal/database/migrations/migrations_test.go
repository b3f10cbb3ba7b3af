package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestRun_AppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, table := range []string{"backfills", "backfill_runs", "events"} {
		var name string
		err := db.QueryRowContext(ctx, `
			SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not created: %v", table, err)
		}
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := Run(ctx, db); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	applied, err := GetApplied(ctx, db)
	if err != nil {
		t.Fatalf("GetApplied() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, m := range applied {
		if seen[m.ID] {
			t.Errorf("migration %s applied twice", m.ID)
		}
		seen[m.ID] = true
		if m.AppliedAt.IsZero() {
			t.Errorf("migration %s has zero applied_at", m.ID)
		}
	}
}
