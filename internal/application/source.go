package application

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// StoreSource adapts a persistence.Store to the read interfaces the
// scheduling engine consumes. It also acts as the engine's participant
// directory.
type StoreSource struct {
	store persistence.Store
}

var (
	_ scheduler.Source               = (*StoreSource)(nil)
	_ scheduler.ParticipantDirectory = (*StoreSource)(nil)
)

// NewStoreSource wraps store.
func NewStoreSource(store persistence.Store) *StoreSource {
	return &StoreSource{store: store}
}

// LoadMeetings returns the blocking meetings of participantID that may have
// occurrences within horizon.
func (s *StoreSource) LoadMeetings(ctx context.Context, participantID string, horizon interval.Interval) ([]scheduler.Meeting, error) {
	startsBefore := horizon.End
	endsAfter := horizon.Start
	rows, err := s.store.ListMeetings(ctx, persistence.MeetingFilter{
		ParticipantIDs: []string{participantID},
		StartsBefore:   &startsBefore,
		EndsAfter:      &endsAfter,
		Statuses:       []string{string(scheduler.StatusScheduled), string(scheduler.StatusInProgress)},
	})
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Meeting, 0, len(rows))
	for _, row := range rows {
		m, err := schedulerMeeting(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadAvailability returns every stored window of participantID; the engine
// selects the ones that govern day.
func (s *StoreSource) LoadAvailability(ctx context.Context, participantID string, day interval.Date) ([]availability.Window, error) {
	rows, err := s.store.ListWindows(ctx, participantID)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Window, 0, len(rows))
	for _, row := range rows {
		w, err := domainWindow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// LoadBlockedTime returns blocked time of participantID overlapping horizon.
func (s *StoreSource) LoadBlockedTime(ctx context.Context, participantID string, horizon interval.Interval) ([]availability.Block, error) {
	rows, err := s.store.ListBlockedTime(ctx, participantID, horizon.Start, horizon.End)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Block, 0, len(rows))
	for _, row := range rows {
		out = append(out, domainBlock(row))
	}
	return out, nil
}

// MissingParticipantIDs reports which ids have no stored participant.
func (s *StoreSource) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	return s.store.MissingParticipantIDs(ctx, ids)
}

func schedulerMeeting(row persistence.Meeting) (scheduler.Meeting, error) {
	m, err := meetingFromRow(row).toScheduler()
	if err != nil {
		return scheduler.Meeting{}, fmt.Errorf("meeting %s: %w", row.ID, err)
	}
	return m, nil
}

func (m Meeting) toScheduler() (scheduler.Meeting, error) {
	freq, err := recurrence.ParseFrequency(m.Recurrence.Frequency)
	if err != nil {
		return scheduler.Meeting{}, err
	}
	return scheduler.Meeting{
		ID:          m.ID,
		OrganizerID: m.OrganizerID,
		Title:       m.Title,
		Anchor:      interval.Interval{Start: m.Start, End: m.End},
		Rule: recurrence.Rule{
			Frequency:    freq,
			IntervalDays: m.Recurrence.IntervalDays,
			Count:        m.Recurrence.Count,
			Until:        m.Recurrence.Until,
		},
		ExcludedIndices: m.ExcludedIndices,
		ExcludedStarts:  m.ExcludedStarts,
		Participants:    m.ParticipantIDs,
		Responses:       m.Responses,
		Status:          m.Status,
	}, nil
}

func (m Meeting) toRow() persistence.Meeting {
	responses := make(map[string]string, len(m.Responses))
	for id, r := range m.Responses {
		responses[id] = string(r)
	}
	return persistence.Meeting{
		ID:              m.ID,
		OrganizerID:     m.OrganizerID,
		Title:           m.Title,
		Description:     m.Description,
		Start:           m.Start,
		End:             m.End,
		Frequency:       m.Recurrence.Frequency,
		IntervalDays:    m.Recurrence.IntervalDays,
		Count:           m.Recurrence.Count,
		Until:           m.Recurrence.Until,
		ExcludedIndices: m.ExcludedIndices,
		ExcludedStarts:  m.ExcludedStarts,
		Participants:    m.ParticipantIDs,
		Responses:       responses,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func meetingFromRow(row persistence.Meeting) Meeting {
	responses := make(map[string]scheduler.ResponseStatus, len(row.Responses))
	for id, r := range row.Responses {
		responses[id] = scheduler.ResponseStatus(r)
	}
	var until *time.Time
	if row.Until != nil {
		u := row.Until.UTC()
		until = &u
	}
	return Meeting{
		ID:          row.ID,
		OrganizerID: row.OrganizerID,
		Title:       row.Title,
		Description: row.Description,
		Start:       row.Start.UTC(),
		End:         row.End.UTC(),
		Recurrence: RecurrenceInput{
			Frequency:    row.Frequency,
			IntervalDays: row.IntervalDays,
			Count:        row.Count,
			Until:        until,
		},
		ExcludedIndices: slices.Clone(row.ExcludedIndices),
		ExcludedStarts:  slices.Clone(row.ExcludedStarts),
		ParticipantIDs:  slices.Clone(row.Participants),
		Responses:       responses,
		Status:          scheduler.Status(row.Status),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func (m Meeting) clone() Meeting {
	out := m
	out.ExcludedIndices = slices.Clone(m.ExcludedIndices)
	out.ExcludedStarts = slices.Clone(m.ExcludedStarts)
	out.ParticipantIDs = slices.Clone(m.ParticipantIDs)
	out.Responses = maps.Clone(m.Responses)
	return out
}

func domainWindow(row persistence.AvailabilityWindow) (availability.Window, error) {
	w := availability.Window{
		ID:            row.ID,
		ParticipantID: row.ParticipantID,
		Weekday:       time.Weekday(row.Weekday),
		Start:         availability.ClockTime(row.StartMinute),
		End:           availability.ClockTime(row.EndMinute),
		Disabled:      row.Disabled,
	}
	var err error
	if w.Date, err = parseOptionalDate(row.Date); err != nil {
		return availability.Window{}, fmt.Errorf("window %s: %w", row.ID, err)
	}
	if w.EffectiveFrom, err = parseOptionalDate(row.EffectiveFrom); err != nil {
		return availability.Window{}, fmt.Errorf("window %s: %w", row.ID, err)
	}
	if w.EffectiveUntil, err = parseOptionalDate(row.EffectiveUntil); err != nil {
		return availability.Window{}, fmt.Errorf("window %s: %w", row.ID, err)
	}
	return w, nil
}

func windowRow(w availability.Window, now time.Time) persistence.AvailabilityWindow {
	return persistence.AvailabilityWindow{
		ID:             w.ID,
		ParticipantID:  w.ParticipantID,
		Weekday:        int(w.Weekday),
		Date:           formatOptionalDate(w.Date),
		StartMinute:    int(w.Start),
		EndMinute:      int(w.End),
		EffectiveFrom:  formatOptionalDate(w.EffectiveFrom),
		EffectiveUntil: formatOptionalDate(w.EffectiveUntil),
		Disabled:       w.Disabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func domainBlock(row persistence.BlockedTime) availability.Block {
	reason, err := availability.ParseReason(row.Reason)
	if err != nil {
		reason = availability.ReasonOther
	}
	return availability.Block{
		ID:            row.ID,
		ParticipantID: row.ParticipantID,
		Interval:      interval.Interval{Start: row.Start, End: row.End},
		Reason:        reason,
		AllDay:        row.AllDay,
	}
}

func parseOptionalDate(s string) (interval.Date, error) {
	if s == "" {
		return interval.Date{}, nil
	}
	return interval.ParseDate(s)
}

func formatOptionalDate(d interval.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
