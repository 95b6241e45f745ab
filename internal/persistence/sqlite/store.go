package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var _ persistence.Store = (*Storage)(nil)

// Storage is a persistence.Store backed by a SQLite database.
type Storage struct {
	*ParticipantRepository
	*MeetingRepository
	*AvailabilityRepository
	*BlockedTimeRepository

	pool *ConnectionPool
}

// Open opens the database at dsn with DefaultConfig. Call Migrate before use.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn))
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(config Config) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		ParticipantRepository:  NewParticipantRepository(pool),
		MeetingRepository:      NewMeetingRepository(pool),
		AvailabilityRepository: NewAvailabilityRepository(pool),
		BlockedTimeRepository:  NewBlockedTimeRepository(pool),
		pool:                   pool,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	return migration.NewManager(s.pool.DB(), schemaFS, "schema", logger).Run(ctx)
}

// Ping tests the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.pool.Close()
}
