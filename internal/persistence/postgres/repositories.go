package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

// --- ParticipantRepository implementation ---

// UpsertParticipant inserts or updates a participant. CreatedAt is kept on update.
func (s *Storage) UpsertParticipant(ctx context.Context, p persistence.Participant) error {
	if p.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Email, p.DisplayName, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return mapError(err)
}

// GetParticipant retrieves a participant by ID.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	var p persistence.Participant
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at, updated_at FROM participants WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return persistence.Participant{}, mapError(err)
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

// ListParticipants returns all participants ordered by ID.
func (s *Storage) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, display_name, created_at, updated_at FROM participants ORDER BY id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []persistence.Participant
	for rows.Next() {
		var p persistence.Participant
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

// DeleteParticipant removes a participant.
func (s *Storage) DeleteParticipant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// MissingParticipantIDs returns the ids with no stored participant in input order.
func (s *Storage) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM participants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	known, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}
	var missing []string
	for _, id := range ids {
		if !slices.Contains(known, id) && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// --- MeetingRepository implementation ---

const meetingColumns = `m.id, m.organizer_id, m.title, m.description, m.start_at, m.end_at, m.frequency,
	m.interval_days, m.occurrence_count, m.until_at, m.status, m.excluded_indices, m.excluded_starts,
	m.created_at, m.updated_at`

// CreateMeeting inserts a meeting with its participants in one transaction.
func (s *Storage) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || meeting.OrganizerID == "" {
		return persistence.ErrConstraintViolation
	}
	m := persistence.NormalizeMeeting(meeting)

	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO meetings (id, organizer_id, title, description, start_at, end_at, frequency,
				interval_days, occurrence_count, until_at, status, excluded_indices, excluded_starts,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, m.ID, m.OrganizerID, m.Title, m.Description, m.Start, m.End, m.Frequency,
			m.IntervalDays, m.Count, m.Until, m.Status, m.ExcludedIndices, m.ExcludedStarts,
			m.CreatedAt.UTC(), m.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		return insertMeetingParticipants(ctx, tx, m)
	}))
}

// UpdateMeeting replaces an existing meeting. The organizer and CreatedAt are immutable.
func (s *Storage) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}
	m := persistence.NormalizeMeeting(meeting)

	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE meetings SET title = $2, description = $3, start_at = $4, end_at = $5, frequency = $6,
				interval_days = $7, occurrence_count = $8, until_at = $9, status = $10,
				excluded_indices = $11, excluded_starts = $12, updated_at = $13
			WHERE id = $1
		`, m.ID, m.Title, m.Description, m.Start, m.End, m.Frequency, m.IntervalDays, m.Count,
			m.Until, m.Status, m.ExcludedIndices, m.ExcludedStarts, m.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		if err := requireAffected(tag); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1`, m.ID); err != nil {
			return err
		}
		return insertMeetingParticipants(ctx, tx, m)
	}))
}

func insertMeetingParticipants(ctx context.Context, tx pgx.Tx, m persistence.Meeting) error {
	if len(m.Participants) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range m.Participants {
		batch.Queue(`INSERT INTO meeting_participants (meeting_id, participant_id, response) VALUES ($1, $2, $3)`,
			m.ID, p, m.Responses[p])
	}
	return tx.SendBatch(ctx, batch).Close()
}

// GetMeeting retrieves a meeting by ID.
func (s *Storage) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	meetings, err := s.queryMeetings(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE m.id = $1`, id)
	if err != nil {
		return persistence.Meeting{}, err
	}
	if len(meetings) == 0 {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return meetings[0], nil
}

// ListMeetings returns the meetings matching filter ordered by start then ID.
func (s *Storage) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.ParticipantIDs) > 0 {
		ids := arg(filter.ParticipantIDs)
		conditions = append(conditions, `(m.organizer_id = ANY(`+ids+`) OR EXISTS (
			SELECT 1 FROM meeting_participants mp WHERE mp.meeting_id = m.id AND mp.participant_id = ANY(`+ids+`)))`)
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, `m.start_at < `+arg(filter.StartsBefore.UTC()))
	}
	if filter.EndsAfter != nil {
		after := arg(filter.EndsAfter.UTC())
		none := arg(persistence.FrequencyNone)
		conditions = append(conditions, `((m.frequency = `+none+` AND m.end_at > `+after+`) OR
			(m.frequency <> `+none+` AND (m.until_at IS NULL OR m.until_at + (m.end_at - m.start_at) > `+after+`)))`)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, `m.status = ANY(`+arg(filter.Statuses)+`)`)
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings m`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	return s.queryMeetings(ctx, query+` ORDER BY m.start_at, m.id`, args...)
}

// queryMeetings runs query and attaches participants with a second query.
func (s *Storage) queryMeetings(ctx context.Context, query string, args ...any) ([]persistence.Meeting, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	meetings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.Meeting, error) {
		var m persistence.Meeting
		err := row.Scan(&m.ID, &m.OrganizerID, &m.Title, &m.Description, &m.Start, &m.End, &m.Frequency,
			&m.IntervalDays, &m.Count, &m.Until, &m.Status, &m.ExcludedIndices, &m.ExcludedStarts,
			&m.CreatedAt, &m.UpdatedAt)
		return m, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(meetings) == 0 {
		return nil, nil
	}

	ids := make([]string, len(meetings))
	index := make(map[string]int, len(meetings))
	for i := range meetings {
		ids[i] = meetings[i].ID
		index[meetings[i].ID] = i
		meetings[i].Responses = make(map[string]string)
	}
	prow, err := s.pool.Query(ctx, `
		SELECT meeting_id, participant_id, response FROM meeting_participants
		WHERE meeting_id = ANY($1) ORDER BY meeting_id, participant_id
	`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	defer prow.Close()
	for prow.Next() {
		var mid, pid, response string
		if err := prow.Scan(&mid, &pid, &response); err != nil {
			return nil, mapError(err)
		}
		m := &meetings[index[mid]]
		m.Participants = append(m.Participants, pid)
		m.Responses[pid] = response
	}
	if err := prow.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range meetings {
		meetings[i] = persistence.NormalizeMeeting(meetings[i])
		meetings[i].CreatedAt = meetings[i].CreatedAt.UTC()
		meetings[i].UpdatedAt = meetings[i].UpdatedAt.UTC()
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting; participants cascade.
func (s *Storage) DeleteMeeting(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// --- AvailabilityRepository implementation ---

const windowColumns = `id, participant_id, weekday, on_date, start_minute, end_minute,
	effective_from, effective_until, disabled, created_at, updated_at`

func insertWindow(ctx context.Context, q execer, w persistence.AvailabilityWindow) error {
	_, err := q.Exec(ctx, `INSERT INTO availability_windows (`+windowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.ParticipantID, w.Weekday, nullIfEmpty(w.Date), w.StartMinute, w.EndMinute,
		nullIfEmpty(w.EffectiveFrom), nullIfEmpty(w.EffectiveUntil), w.Disabled,
		w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

// CreateWindow inserts a new availability window.
func (s *Storage) CreateWindow(ctx context.Context, w persistence.AvailabilityWindow) error {
	if w.ID == "" || w.ParticipantID == "" {
		return persistence.ErrConstraintViolation
	}
	return mapError(insertWindow(ctx, s.pool, w))
}

func scanWindow(row pgx.Row) (persistence.AvailabilityWindow, error) {
	var w persistence.AvailabilityWindow
	var date, from, until *string
	err := row.Scan(&w.ID, &w.ParticipantID, &w.Weekday, &date, &w.StartMinute, &w.EndMinute,
		&from, &until, &w.Disabled, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return persistence.AvailabilityWindow{}, err
	}
	w.Date, w.EffectiveFrom, w.EffectiveUntil = deref(date), deref(from), deref(until)
	w.CreatedAt, w.UpdatedAt = w.CreatedAt.UTC(), w.UpdatedAt.UTC()
	return w, nil
}

// GetWindow retrieves a window by ID.
func (s *Storage) GetWindow(ctx context.Context, id string) (persistence.AvailabilityWindow, error) {
	w, err := scanWindow(s.pool.QueryRow(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE id = $1`, id))
	if err != nil {
		return persistence.AvailabilityWindow{}, mapError(err)
	}
	return w, nil
}

// ListWindows returns the participant's windows ordered by weekday, date, start minute and ID.
func (s *Storage) ListWindows(ctx context.Context, participantID string) ([]persistence.AvailabilityWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+` FROM availability_windows
		WHERE participant_id = $1
		ORDER BY weekday, COALESCE(on_date, ''), start_minute, id
	`, participantID)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.AvailabilityWindow, error) {
		return scanWindow(row)
	})
	return out, mapError(err)
}

// DeleteWindow removes a window.
func (s *Storage) DeleteWindow(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// ReplaceWeeklyWindows swaps the participant's weekly windows in one transaction.
func (s *Storage) ReplaceWeeklyWindows(ctx context.Context, participantID string, windows []persistence.AvailabilityWindow) error {
	for _, w := range windows {
		if w.ID == "" || w.ParticipantID != participantID || w.Date != "" {
			return fmt.Errorf("%w: window %q is not a weekly window of %s", persistence.ErrConstraintViolation, w.ID, participantID)
		}
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE participant_id = $1 AND on_date IS NULL`, participantID); err != nil {
			return err
		}
		for _, w := range windows {
			if err := insertWindow(ctx, tx, w); err != nil {
				return err
			}
		}
		return nil
	}))
}

// --- BlockedTimeRepository implementation ---

const blockColumns = `id, participant_id, start_at, end_at, reason, all_day, created_at, updated_at`

// CreateBlockedTime inserts a new block.
func (s *Storage) CreateBlockedTime(ctx context.Context, b persistence.BlockedTime) error {
	if b.ID == "" || b.ParticipantID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO blocked_times (`+blockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.ParticipantID, b.Start.UTC(), b.End.UTC(), b.Reason, b.AllDay, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	return mapError(err)
}

func scanBlock(row pgx.Row) (persistence.BlockedTime, error) {
	var b persistence.BlockedTime
	if err := row.Scan(&b.ID, &b.ParticipantID, &b.Start, &b.End, &b.Reason, &b.AllDay, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return persistence.BlockedTime{}, err
	}
	b.Start, b.End = b.Start.UTC(), b.End.UTC()
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return b, nil
}

// GetBlockedTime retrieves a block by ID.
func (s *Storage) GetBlockedTime(ctx context.Context, id string) (persistence.BlockedTime, error) {
	b, err := scanBlock(s.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocked_times WHERE id = $1`, id))
	if err != nil {
		return persistence.BlockedTime{}, mapError(err)
	}
	return b, nil
}

// ListBlockedTime returns blocks overlapping [start, end) ordered by start then ID.
func (s *Storage) ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]persistence.BlockedTime, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+blockColumns+` FROM blocked_times
		WHERE participant_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at, id
	`, participantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, mapError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.BlockedTime, error) {
		return scanBlock(row)
	})
	return out, mapError(err)
}

// DeleteBlockedTime removes a block.
func (s *Storage) DeleteBlockedTime(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blocked_times WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}
