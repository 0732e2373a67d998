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
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first, err := Up(ctx, db)
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	second, err := Up(ctx, db)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if first != 1 || second != first {
		t.Fatalf("unexpected versions: first=%d second=%d", first, second)
	}

	for _, table := range []string{"api_keys", "column_schemas", "validation_runs", "outbox_events"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestResetDropsTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := Up(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Reset(ctx, db); err != nil {
		t.Fatalf("reset: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'validation_runs'").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatal("expected validation_runs to be dropped")
	}
}
