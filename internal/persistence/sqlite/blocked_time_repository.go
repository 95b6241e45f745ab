package sqlite

import (
	"context"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

// BlockedTimeRepository implements persistence.BlockedTimeRepository using SQLite
type BlockedTimeRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBlockedTimeRepository creates a new SQLite blocked time repository
func NewBlockedTimeRepository(pool *ConnectionPool) *BlockedTimeRepository {
	return &BlockedTimeRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const blockColumns = `id, participant_id, start_at, end_at, reason, all_day, created_at, updated_at`

// CreateBlockedTime inserts a new block
func (r *BlockedTimeRepository) CreateBlockedTime(ctx context.Context, block persistence.BlockedTime) error {
	if block.ID == "" || block.ParticipantID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO blocked_times (`+blockColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			block.ID,
			block.ParticipantID,
			timestamp(block.Start),
			timestamp(block.End),
			block.Reason,
			block.AllDay,
			timestamp(block.CreatedAt),
			timestamp(block.UpdatedAt),
		)
		return err
	})
}

// GetBlockedTime retrieves a block by ID
func (r *BlockedTimeRepository) GetBlockedTime(ctx context.Context, id string) (persistence.BlockedTime, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocked_times WHERE id = ?`, id)
	b, err := scanBlock(row)
	if err != nil {
		return persistence.BlockedTime{}, r.mapper.MapError(err)
	}
	return b, nil
}

// ListBlockedTime returns blocks overlapping [start, end) ordered by start then ID
func (r *BlockedTimeRepository) ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]persistence.BlockedTime, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+blockColumns+` FROM blocked_times
		WHERE participant_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at, id`,
		participantID, timestamp(end), timestamp(start))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []persistence.BlockedTime
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		out = append(out, b)
	}
	return out, r.mapper.MapError(rows.Err())
}

// DeleteBlockedTime removes a block
func (r *BlockedTimeRepository) DeleteBlockedTime(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		res, err := r.pool.DB().ExecContext(ctx, `DELETE FROM blocked_times WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func scanBlock(row rowScanner) (persistence.BlockedTime, error) {
	var b persistence.BlockedTime
	var start, end, created, updated string
	if err := row.Scan(&b.ID, &b.ParticipantID, &start, &end, &b.Reason, &b.AllDay, &created, &updated); err != nil {
		return persistence.BlockedTime{}, err
	}
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&b.Start, start},
		{&b.End, end},
		{&b.CreatedAt, created},
		{&b.UpdatedAt, updated},
	} {
		if *f.dst, err = parseTimestamp(f.src); err != nil {
			return persistence.BlockedTime{}, err
		}
	}
	return b, nil
}
