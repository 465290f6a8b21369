package migrations

import (
	"bytes"
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestFS(t *testing.T) {
	t.Parallel()

	for _, dialect := range []Dialect{DialectSQLite, DialectPostgres} {
		fsys, err := FS(dialect)
		if err != nil {
			t.Fatalf("FS(%s) failed: %v", dialect, err)
		}
		names, err := fs.Glob(fsys, "*.sql")
		if err != nil {
			t.Fatalf("glob failed: %v", err)
		}
		if len(names) != 2 {
			t.Fatalf("expected 2 migrations for %s, got %v", dialect, names)
		}
	}

	if _, err := FS(Dialect("oracle")); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}

func TestUp_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := Up(ctx, db, DialectSQLite, logger); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if !strings.Contains(logs.String(), "migration applied") {
		t.Fatalf("expected applied migrations to be logged, got %s", logs.String())
	}

	version, err := Version(ctx, db, DialectSQLite)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}

	logs.Reset()
	if err := Up(ctx, db, DialectSQLite, logger); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}
	if !strings.Contains(logs.String(), "all migrations already applied") {
		t.Fatalf("expected no-op run to be logged, got %s", logs.String())
	}

	for _, table := range []string{"rooms", "meeting_types", "reservations", "reservation_changes"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}
