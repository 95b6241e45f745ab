package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager applies pending migrations from a file system in version order.
type Manager struct {
	executor *Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager constructs a Manager. A nil logger discards output.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		executor: NewExecutor(db),
		fsys:     fsys,
		dir:      dir,
		logger:   logger,
	}
}

// Run applies every pending migration. A failed migration rolls back and
// stops the run, leaving earlier migrations applied.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", slog.String("version", status.CurrentVersion))
		return nil
	}

	for i, migration := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("position", i+1),
			slog.Int("pending", len(status.Pending)),
		)
		if err := m.executor.Execute(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				slog.String("version", migration.Version),
				slog.Any("error", err),
			)
			return err
		}
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(status.Pending)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Status compares the migration files with the recorded versions. A recorded
// version whose checksum differs from its file is an error.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	recorded := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		recorded[a.Version] = a
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		a, ok := recorded[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, a.Checksum, migration.Checksum))
		}
	}
	return status, nil
}
