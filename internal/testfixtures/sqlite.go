package testfixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/memory"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/postgres"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/sqlite"
)

// PostgresDSNEnv names the variable that enables the PostgreSQL store in
// ForEachStore.
const PostgresDSNEnv = "SCHEDULER_TEST_POSTGRES_DSN"

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	storage, err := sqlite.Open(filepath.Join(tb.TempDir(), "scheduler.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background(), nil); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return storage
}

// ForEachStore runs fn as a subtest against every available store
// implementation. PostgreSQL joins when PostgresDSNEnv is set; its tables are
// truncated before each run.
func ForEachStore(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteStore(t))
	})
	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv(PostgresDSNEnv)
		if dsn == "" {
			t.Skipf("%s not set", PostgresDSNEnv)
		}
		ctx := context.Background()
		storage, err := postgres.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("failed to open postgres: %v", err)
		}
		t.Cleanup(func() { _ = storage.Close() })
		if err := storage.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate postgres: %v", err)
		}
		if err := storage.Truncate(ctx); err != nil {
			t.Fatalf("failed to truncate postgres: %v", err)
		}
		fn(t, storage)
	})
}
