package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite
type AvailabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAvailabilityRepository creates a new SQLite availability repository
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const windowColumns = `id, participant_id, weekday, on_date, start_minute, end_minute,
	effective_from, effective_until, disabled, created_at, updated_at`

// CreateWindow inserts a new availability window
func (r *AvailabilityRepository) CreateWindow(ctx context.Context, window persistence.AvailabilityWindow) error {
	if window.ID == "" || window.ParticipantID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		return insertWindow(ctx, r.pool.DB(), window)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertWindow(ctx context.Context, db execer, w persistence.AvailabilityWindow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_windows (`+windowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID,
		w.ParticipantID,
		w.Weekday,
		nullString(w.Date),
		w.StartMinute,
		w.EndMinute,
		nullString(w.EffectiveFrom),
		nullString(w.EffectiveUntil),
		w.Disabled,
		timestamp(w.CreatedAt),
		timestamp(w.UpdatedAt),
	)
	return err
}

// GetWindow retrieves a window by ID
func (r *AvailabilityRepository) GetWindow(ctx context.Context, id string) (persistence.AvailabilityWindow, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE id = ?`, id)
	w, err := scanWindow(row)
	if err != nil {
		return persistence.AvailabilityWindow{}, r.mapper.MapError(err)
	}
	return w, nil
}

// ListWindows returns the participant's windows ordered by weekday, date,
// start minute and ID
func (r *AvailabilityRepository) ListWindows(ctx context.Context, participantID string) ([]persistence.AvailabilityWindow, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+windowColumns+` FROM availability_windows
		WHERE participant_id = ?
		ORDER BY weekday, COALESCE(on_date, ''), start_minute, id`, participantID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []persistence.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		out = append(out, w)
	}
	return out, r.mapper.MapError(rows.Err())
}

// DeleteWindow removes a window
func (r *AvailabilityRepository) DeleteWindow(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		res, err := r.pool.DB().ExecContext(ctx, `DELETE FROM availability_windows WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// ReplaceWeeklyWindows swaps the participant's weekly windows in one transaction
func (r *AvailabilityRepository) ReplaceWeeklyWindows(ctx context.Context, participantID string, windows []persistence.AvailabilityWindow) error {
	for _, w := range windows {
		if w.ID == "" || w.ParticipantID != participantID || w.Date != "" {
			return fmt.Errorf("%w: window %q is not a weekly window of %s", persistence.ErrConstraintViolation, w.ID, participantID)
		}
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM availability_windows WHERE participant_id = ? AND on_date IS NULL`, participantID); err != nil {
				return err
			}
			for _, w := range windows {
				if err := insertWindow(ctx, tx, w); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func scanWindow(row rowScanner) (persistence.AvailabilityWindow, error) {
	var w persistence.AvailabilityWindow
	var date, from, until sql.NullString
	var created, updated string
	if err := row.Scan(
		&w.ID,
		&w.ParticipantID,
		&w.Weekday,
		&date,
		&w.StartMinute,
		&w.EndMinute,
		&from,
		&until,
		&w.Disabled,
		&created,
		&updated,
	); err != nil {
		return persistence.AvailabilityWindow{}, err
	}
	w.Date, w.EffectiveFrom, w.EffectiveUntil = date.String, from.String, until.String

	var err error
	if w.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.AvailabilityWindow{}, err
	}
	if w.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.AvailabilityWindow{}, err
	}
	return w, nil
}
