package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"schema/10_later.sql":         {Data: []byte("CREATE TABLE b (id TEXT);")},
			"schema/2_earlier.sql":        {Data: []byte("CREATE TABLE a (id TEXT);")},
			"schema/README.md":            {Data: []byte("ignored")},
			"schema/001_initial_data.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}
		got, err := Scan(fsys, "schema")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if len(got) != 3 || got[0].Version != "001" || got[1].Version != "2" || got[2].Version != "10" {
			t.Fatalf("unexpected order: %+v", got)
		}
		if got[0].Description != "initial data" || got[0].Checksum == "" {
			t.Fatalf("unexpected metadata: %+v", got[0])
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"schema/001_a.sql": {Data: []byte("SELECT 1;")},
			"schema/1_b.sql":   {Data: []byte("SELECT 1;")},
		}
		if _, err := Scan(fsys, "schema"); !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects bad names and empty files", func(t *testing.T) {
		t.Parallel()

		if _, err := Scan(fstest.MapFS{"schema/initial.sql": {Data: []byte("SELECT 1;")}}, "schema"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile for bad name, got %v", err)
		}
		if _, err := Scan(fstest.MapFS{"schema/001_empty.sql": {Data: []byte("  \n")}}, "schema"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile for empty file, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n-- note\nCREATE INDEX idx ON a(id);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (id TEXT)" || got[1] != "CREATE INDEX idx ON a(id)" {
		t.Fatalf("unexpected statements: %q", got)
	}
}

func TestManager_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies pending migrations once", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		fsys := fstest.MapFS{
			"schema/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY);")},
			"schema/002_pets.sql":   {Data: []byte("CREATE TABLE pets (id TEXT PRIMARY KEY, owner TEXT);\nCREATE INDEX idx_pets_owner ON pets(owner);")},
		}
		manager := NewManager(db, fsys, "schema", nil)
		if err := manager.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if err := manager.Run(ctx); err != nil {
			t.Fatalf("second Run: %v", err)
		}

		status, err := manager.Status(ctx)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.CurrentVersion != "002" || len(status.Applied) != 2 || len(status.Pending) != 0 {
			t.Fatalf("unexpected status: %+v", status)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO pets (id, owner) VALUES ('p1', 'alice')"); err != nil {
			t.Fatalf("schema not applied: %v", err)
		}
	})

	t.Run("failed migration rolls back", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		fsys := fstest.MapFS{
			"schema/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
			"schema/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nTHIS IS NOT SQL;")},
		}
		manager := NewManager(db, fsys, "schema", nil)
		if err := manager.Run(ctx); !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}

		applied, err := NewExecutor(db).IsApplied(ctx, "002")
		if err != nil || applied {
			t.Fatalf("broken migration must not be recorded (applied=%v err=%v)", applied, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO half (id) VALUES ('x')"); err == nil {
			t.Fatalf("expected partial migration to be rolled back")
		}
	})

	t.Run("edited migrations are reported", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if err := NewManager(db, fstest.MapFS{
			"schema/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT);")},
		}, "schema", nil).Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}

		edited := NewManager(db, fstest.MapFS{
			"schema/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT, name TEXT);")},
		}, "schema", nil)
		if err := edited.Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}
