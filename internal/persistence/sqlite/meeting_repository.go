package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository using SQLite.
// Participants with their responses and cancelled occurrences live in child
// tables that are rewritten on every update.
type MeetingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const meetingColumns = `id, organizer_id, title, description, start_at, end_at, frequency,
	interval_days, occurrence_count, until_at, status, created_at, updated_at`

// CreateMeeting inserts a new meeting with its participants and exclusions
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || meeting.OrganizerID == "" {
		return persistence.ErrConstraintViolation
	}
	meeting = persistence.NormalizeMeeting(meeting)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meetings (`+meetingColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				meeting.ID,
				meeting.OrganizerID,
				meeting.Title,
				nullableText(meeting.Description),
				timestamp(meeting.Start),
				timestamp(meeting.End),
				meeting.Frequency,
				meeting.IntervalDays,
				meeting.Count,
				nullableTime(meeting.Until),
				meeting.Status,
				timestamp(meeting.CreatedAt),
				timestamp(meeting.UpdatedAt),
			)
			if err != nil {
				return err
			}
			return r.writeChildren(ctx, tx, meeting)
		})
	})
}

// UpdateMeeting replaces an existing meeting. The organizer and CreatedAt are
// immutable.
func (r *MeetingRepository) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}
	meeting = persistence.NormalizeMeeting(meeting)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				UPDATE meetings
				SET title = ?, description = ?, start_at = ?, end_at = ?, frequency = ?,
					interval_days = ?, occurrence_count = ?, until_at = ?, status = ?, updated_at = ?
				WHERE id = ?`,
				meeting.Title,
				nullableText(meeting.Description),
				timestamp(meeting.Start),
				timestamp(meeting.End),
				meeting.Frequency,
				meeting.IntervalDays,
				meeting.Count,
				nullableTime(meeting.Until),
				meeting.Status,
				timestamp(meeting.UpdatedAt),
				meeting.ID,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(res); err != nil {
				return err
			}
			for _, table := range []string{"meeting_participants", "meeting_exclusions"} {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE meeting_id = ?`, meeting.ID); err != nil {
					return err
				}
			}
			return r.writeChildren(ctx, tx, meeting)
		})
	})
}

func (r *MeetingRepository) writeChildren(ctx context.Context, tx *sql.Tx, meeting persistence.Meeting) error {
	for _, p := range meeting.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meeting_participants (meeting_id, participant_id, response) VALUES (?, ?, ?)`,
			meeting.ID, p, meeting.Responses[p]); err != nil {
			return err
		}
	}
	for _, idx := range meeting.ExcludedIndices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meeting_exclusions (meeting_id, occurrence_index) VALUES (?, ?)`,
			meeting.ID, idx); err != nil {
			return err
		}
	}
	for _, start := range meeting.ExcludedStarts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meeting_exclusions (meeting_id, occurrence_start) VALUES (?, ?)`,
			meeting.ID, timestamp(start)); err != nil {
			return err
		}
	}
	return nil
}

// GetMeeting retrieves a meeting by ID
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	var meeting persistence.Meeting
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
		m, err := scanMeeting(row)
		if err != nil {
			return err
		}
		if err := r.loadChildren(ctx, tx, &m); err != nil {
			return err
		}
		meeting = m
		return nil
	})
	if err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return meeting, nil
}

// ListMeetings returns the meetings matching filter ordered by start then ID
func (r *MeetingRepository) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	query, args := buildMeetingListQuery(filter)

	var meetings []persistence.Meeting
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			m, err := scanMeeting(rows)
			if err != nil {
				rows.Close()
				return err
			}
			meetings = append(meetings, m)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// Children are loaded after the cursor is closed; the pool runs
		// a single connection.
		for i := range meetings {
			if err := r.loadChildren(ctx, tx, &meetings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting; child rows cascade.
func (r *MeetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		res, err := r.pool.DB().ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func buildMeetingListQuery(filter persistence.MeetingFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if len(filter.ParticipantIDs) > 0 {
		ph := placeholders(len(filter.ParticipantIDs))
		conditions = append(conditions, `(m.organizer_id IN (`+ph+`) OR EXISTS (
			SELECT 1 FROM meeting_participants mp
			WHERE mp.meeting_id = m.id AND mp.participant_id IN (`+ph+`)))`)
		for range 2 {
			for _, id := range filter.ParticipantIDs {
				args = append(args, id)
			}
		}
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, `m.start_at < ?`)
		args = append(args, timestamp(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		after := timestamp(*filter.EndsAfter)
		conditions = append(conditions, `(
			(m.frequency = ? AND m.end_at > ?) OR
			(m.frequency <> ? AND (m.until_at IS NULL OR
				unixepoch(m.until_at) + (unixepoch(m.end_at) - unixepoch(m.start_at)) > unixepoch(?))))`)
		args = append(args, persistence.FrequencyNone, after, persistence.FrequencyNone, after)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, `m.status IN (`+placeholders(len(filter.Statuses))+`)`)
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + prefixColumns("m.", meetingColumns) + ` FROM meetings m`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	return query + ` ORDER BY m.start_at, m.id`, args
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *MeetingRepository) loadChildren(ctx context.Context, tx *sql.Tx, m *persistence.Meeting) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, response FROM meeting_participants WHERE meeting_id = ? ORDER BY participant_id`, m.ID)
	if err != nil {
		return err
	}
	m.Participants = nil
	m.Responses = make(map[string]string)
	for rows.Next() {
		var pid, response string
		if err := rows.Scan(&pid, &response); err != nil {
			rows.Close()
			return err
		}
		m.Participants = append(m.Participants, pid)
		m.Responses[pid] = response
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT occurrence_index, occurrence_start FROM meeting_exclusions
		WHERE meeting_id = ? ORDER BY occurrence_index, occurrence_start`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx   sql.NullInt64
			start sql.NullString
		)
		if err := rows.Scan(&idx, &start); err != nil {
			return err
		}
		if idx.Valid {
			m.ExcludedIndices = append(m.ExcludedIndices, int(idx.Int64))
		}
		if start.Valid {
			t, err := parseTimestamp(start.String)
			if err != nil {
				return err
			}
			m.ExcludedStarts = append(m.ExcludedStarts, t)
		}
	}
	return rows.Err()
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var m persistence.Meeting
	var description, until sql.NullString
	var start, end, created, updated string
	if err := row.Scan(
		&m.ID,
		&m.OrganizerID,
		&m.Title,
		&description,
		&start,
		&end,
		&m.Frequency,
		&m.IntervalDays,
		&m.Count,
		&until,
		&m.Status,
		&created,
		&updated,
	); err != nil {
		return persistence.Meeting{}, err
	}

	if description.Valid {
		m.Description = &description.String
	}
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&m.Start, start},
		{&m.End, end},
		{&m.CreatedAt, created},
		{&m.UpdatedAt, updated},
	} {
		if *f.dst, err = parseTimestamp(f.src); err != nil {
			return persistence.Meeting{}, err
		}
	}
	if until.Valid {
		u, err := parseTimestamp(until.String)
		if err != nil {
			return persistence.Meeting{}, fmt.Errorf("until_at: %w", err)
		}
		m.Until = &u
	}
	return m, nil
}

func nullableText(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timestamp(*t), Valid: true}
}
