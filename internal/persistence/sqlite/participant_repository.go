package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite
type ParticipantRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewParticipantRepository creates a new SQLite participant repository
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// UpsertParticipant inserts or updates a participant. CreatedAt is kept on update.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO participants (id, email, display_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				email = excluded.email,
				display_name = excluded.display_name,
				updated_at = excluded.updated_at`,
			participant.ID,
			participant.Email,
			participant.DisplayName,
			timestamp(participant.CreatedAt),
			timestamp(participant.UpdatedAt),
		)
		return err
	})
}

// GetParticipant retrieves a participant by ID
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, display_name, created_at, updated_at
		FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return persistence.Participant{}, r.mapper.MapError(err)
	}
	return p, nil
}

// ListParticipants returns all participants ordered by ID
func (r *ParticipantRepository) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, email, display_name, created_at, updated_at
		FROM participants ORDER BY id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []persistence.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, r.mapper.MapError(rows.Err())
}

// DeleteParticipant removes a participant
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		res, err := r.pool.DB().ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// MissingParticipantIDs returns the ids with no stored participant in input order.
func (r *ParticipantRepository) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id FROM participants WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	var missing []string
	for _, id := range ids {
		if !known[id] && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (persistence.Participant, error) {
	var p persistence.Participant
	var created, updated string
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &created, &updated); err != nil {
		return persistence.Participant{}, err
	}
	var err error
	if p.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Participant{}, err
	}
	if p.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Participant{}, err
	}
	return p, nil
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
