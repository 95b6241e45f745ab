package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

const meetingServiceName = "MeetingService"

// Invalidator is notified after every successful write that can change a
// conflict outcome.
type Invalidator interface {
	Invalidate()
}

// MeetingService orchestrates validation, authoritative booking and
// persistence for meetings.
type MeetingService struct {
	meetings    persistence.MeetingRepository
	engine      *scheduler.Engine
	expander    *recurrence.Engine
	invalidator Invalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMeetingService wires dependencies for meeting operations. The engine
// must carry a claimer for create and update to succeed.
func NewMeetingService(meetings persistence.MeetingRepository, engine *scheduler.Engine, invalidator Invalidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MeetingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	svc := &MeetingService{
		meetings:    meetings,
		engine:      engine,
		invalidator: invalidator,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
	if engine != nil {
		svc.expander = recurrence.NewEngine(engine.Location(), engine.Policy().MaxRecurrenceHorizon)
	}
	return svc
}

// CreateMeeting validates the input and books it authoritatively: the
// meeting is stored only if none of its occurrences conflict while the
// participants' days are claimed.
func (s *MeetingService) CreateMeeting(ctx context.Context, input MeetingInput) (result BookingResult, err error) {
	if s == nil || s.engine == nil || s.meetings == nil {
		return BookingResult{}, fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "CreateMeeting",
		attribute.Int("participants", len(input.ParticipantIDs)),
		attribute.String("frequency", input.Recurrence.Frequency))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "CreateMeeting",
		"organizer_id", input.OrganizerID,
		"participant_count", len(input.ParticipantIDs),
	)

	normalized := normalizeMeetingInput(input)
	vErr := validateMeetingInput(normalized)
	if vErr.HasErrors() {
		logFailure(logger, "meeting validation failed", vErr)
		return BookingResult{}, vErr
	}

	createdAt := s.now()
	meeting := Meeting{
		ID:             s.idGenerator(),
		OrganizerID:    normalized.OrganizerID,
		Title:          normalized.Title,
		Description:    normalized.Description,
		Start:          normalized.Start.UTC(),
		End:            normalized.End.UTC(),
		Recurrence:     normalized.Recurrence,
		ParticipantIDs: normalized.ParticipantIDs,
		Responses:      initialResponses(normalized.ParticipantIDs, nil),
		Status:         scheduler.StatusScheduled,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}

	report, err := s.book(ctx, meeting, func(ctx context.Context) error {
		return s.meetings.CreateMeeting(ctx, meeting.toRow())
	})
	if err != nil {
		logFailure(logger, "meeting booking failed", err)
		return BookingResult{Report: report}, err
	}

	persisted, err := s.meetings.GetMeeting(ctx, meeting.ID)
	if err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to reload meeting", err)
		return BookingResult{}, err
	}

	logger.Info("meeting created", "meeting_id", meeting.ID, "truncated", report.Truncated)
	return BookingResult{Meeting: meetingFromRow(persisted), Report: report}, nil
}

// UpdateMeeting replaces the schedule, title and participants of an existing
// meeting. The organizer cannot change. The new schedule is booked
// authoritatively while ignoring the meeting's own occurrences.
func (s *MeetingService) UpdateMeeting(ctx context.Context, meetingID string, input MeetingInput) (result BookingResult, err error) {
	if s == nil || s.engine == nil || s.meetings == nil {
		return BookingResult{}, fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "UpdateMeeting", attribute.String("meeting_id", meetingID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "UpdateMeeting", "meeting_id", meetingID)

	existing, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		logFailure(logger, "failed to load meeting", err)
		return BookingResult{}, err
	}

	normalized := normalizeMeetingInput(input)
	vErr := &ValidationError{}
	if normalized.OrganizerID == "" {
		normalized.OrganizerID = existing.OrganizerID
	} else if normalized.OrganizerID != existing.OrganizerID {
		vErr.add("organizer_id", "organizer cannot be changed")
	}
	if existing.Status == scheduler.StatusCancelled {
		vErr.add("status", "cancelled meetings cannot be edited")
	}
	vErr.merge(validateMeetingInput(normalized))
	if vErr.HasErrors() {
		logFailure(logger, "meeting validation failed", vErr)
		return BookingResult{}, vErr
	}

	updated := existing.clone()
	updated.Title = normalized.Title
	updated.Description = normalized.Description
	updated.Start = normalized.Start.UTC()
	updated.End = normalized.End.UTC()
	updated.ParticipantIDs = normalized.ParticipantIDs
	updated.Responses = initialResponses(normalized.ParticipantIDs, existing.Responses)
	if scheduleChanged(existing, normalized) {
		// Occurrence indices and starts no longer identify the same slots.
		updated.Recurrence = normalized.Recurrence
		updated.ExcludedIndices = nil
		updated.ExcludedStarts = nil
	}
	updated.UpdatedAt = s.now()

	report, err := s.book(ctx, updated, func(ctx context.Context) error {
		return s.meetings.UpdateMeeting(ctx, updated.toRow())
	})
	if err != nil {
		logFailure(logger, "meeting booking failed", err)
		return BookingResult{Report: report}, err
	}

	persisted, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		logFailure(logger, "failed to reload meeting", err)
		return BookingResult{}, err
	}
	logger.Info("meeting updated", "truncated", report.Truncated)
	return BookingResult{Meeting: persisted, Report: report}, nil
}

// GetMeeting returns a stored meeting.
func (s *MeetingService) GetMeeting(ctx context.Context, meetingID string) (Meeting, error) {
	if s == nil || s.meetings == nil {
		return Meeting{}, fmt.Errorf("MeetingService is not configured")
	}
	return s.getMeeting(ctx, meetingID)
}

// ListMeetings enumerates meetings, ordered by start then ID.
func (s *MeetingService) ListMeetings(ctx context.Context, params ListMeetingsParams) ([]Meeting, error) {
	if s == nil || s.meetings == nil {
		return nil, fmt.Errorf("MeetingService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "ListMeetings", "participant_id", params.ParticipantID)

	vErr := &ValidationError{}
	if params.Start != nil && params.End != nil && !params.End.After(*params.Start) {
		vErr.add("time", "end must be after start")
	}
	for _, st := range params.Statuses {
		if !st.Valid() {
			vErr.add("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	if vErr.HasErrors() {
		logFailure(logger, "meeting listing rejected", vErr)
		return nil, vErr
	}

	filter := persistence.MeetingFilter{StartsBefore: params.End, EndsAfter: params.Start}
	if id := strings.TrimSpace(params.ParticipantID); id != "" {
		filter.ParticipantIDs = []string{id}
	}
	for _, st := range params.Statuses {
		filter.Statuses = append(filter.Statuses, string(st))
	}

	rows, err := s.meetings.ListMeetings(ctx, filter)
	if err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to list meetings", err)
		return nil, err
	}
	out := make([]Meeting, 0, len(rows))
	for _, row := range rows {
		out = append(out, meetingFromRow(row))
	}
	return out, nil
}

// Respond records a participant's answer. A declined participant no longer
// counts as occupied by the meeting.
func (s *MeetingService) Respond(ctx context.Context, meetingID, participantID string, response scheduler.ResponseStatus) (meeting Meeting, err error) {
	if s == nil || s.meetings == nil {
		return Meeting{}, fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "Respond", attribute.String("response", string(response)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "Respond",
		"meeting_id", meetingID, "participant_id", participantID, "response", response)

	if !response.Valid() {
		vErr := fieldError("response", "must be one of pending, accepted, declined or tentative")
		logFailure(logger, "response rejected", vErr)
		return Meeting{}, vErr
	}
	existing, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		logFailure(logger, "failed to load meeting", err)
		return Meeting{}, err
	}
	if !slices.Contains(existing.ParticipantIDs, participantID) {
		vErr := fieldError("participant_id", "participant is not invited to this meeting")
		logFailure(logger, "response rejected", vErr)
		return Meeting{}, vErr
	}

	updated := existing.clone()
	updated.Responses[participantID] = response
	updated.UpdatedAt = s.now()
	if err := s.save(ctx, updated); err != nil {
		logFailure(logger, "failed to store response", err)
		return Meeting{}, err
	}
	logger.Info("response recorded")
	return updated, nil
}

// CancelOccurrence cancels a single occurrence of a recurring meeting. The
// occurrence is identified by sequence index or by its start instant.
func (s *MeetingService) CancelOccurrence(ctx context.Context, params CancelOccurrenceParams) (meeting Meeting, err error) {
	if s == nil || s.meetings == nil || s.expander == nil {
		return Meeting{}, fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "CancelOccurrence", attribute.String("meeting_id", params.MeetingID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "CancelOccurrence", "meeting_id", params.MeetingID)

	if (params.Index == nil) == (params.Start == nil) {
		vErr := fieldError("occurrence", "exactly one of index or start is required")
		logFailure(logger, "occurrence cancellation rejected", vErr)
		return Meeting{}, vErr
	}
	existing, err := s.getMeeting(ctx, params.MeetingID)
	if err != nil {
		logFailure(logger, "failed to load meeting", err)
		return Meeting{}, err
	}
	if existing.Recurrence.Frequency == persistence.FrequencyNone {
		vErr := fieldError("occurrence", "only recurring meetings have occurrences; cancel the meeting instead")
		logFailure(logger, "occurrence cancellation rejected", vErr)
		return Meeting{}, vErr
	}

	occ, ok, err := s.findOccurrence(existing, params)
	if err != nil {
		logFailure(logger, "occurrence lookup failed", err)
		return Meeting{}, err
	}
	if !ok {
		logFailure(logger, "occurrence not found", ErrNotFound)
		return Meeting{}, ErrNotFound
	}

	updated := existing.clone()
	if params.Index != nil {
		updated.ExcludedIndices = append(updated.ExcludedIndices, occ.Index)
	} else {
		updated.ExcludedStarts = append(updated.ExcludedStarts, occ.Interval.Start.UTC())
	}
	updated.UpdatedAt = s.now()
	if err := s.save(ctx, updated); err != nil {
		logFailure(logger, "failed to store exclusion", err)
		return Meeting{}, err
	}
	logger.Info("occurrence cancelled", "index", occ.Index, "start", occ.Interval.Start.UTC())
	return s.getMeeting(ctx, params.MeetingID)
}

// SetStatus moves a meeting to status. Bringing a cancelled or completed
// meeting back to a blocking state re-books it authoritatively.
func (s *MeetingService) SetStatus(ctx context.Context, meetingID string, status scheduler.Status) (result BookingResult, err error) {
	if s == nil || s.meetings == nil || s.engine == nil {
		return BookingResult{}, fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "SetStatus", attribute.String("status", string(status)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "SetStatus", "meeting_id", meetingID, "status", status)

	if !status.Valid() {
		vErr := fieldError("status", "must be one of scheduled, in_progress, completed or cancelled")
		logFailure(logger, "status change rejected", vErr)
		return BookingResult{}, vErr
	}
	existing, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		logFailure(logger, "failed to load meeting", err)
		return BookingResult{}, err
	}
	if existing.Status == status {
		return BookingResult{Meeting: existing}, nil
	}

	updated := existing.clone()
	updated.Status = status
	updated.UpdatedAt = s.now()

	var report scheduler.ConflictReport
	if status.Blocking() && !existing.Status.Blocking() {
		report, err = s.book(ctx, updated, func(ctx context.Context) error {
			return s.meetings.UpdateMeeting(ctx, updated.toRow())
		})
	} else {
		err = s.save(ctx, updated)
	}
	if err != nil {
		logFailure(logger, "failed to change status", err)
		return BookingResult{Report: report}, err
	}
	logger.Info("meeting status changed", "from", existing.Status)
	return BookingResult{Meeting: updated, Report: report}, nil
}

// CancelMeeting marks the whole meeting cancelled. Cancelled meetings never
// conflict.
func (s *MeetingService) CancelMeeting(ctx context.Context, meetingID string) (Meeting, error) {
	result, err := s.SetStatus(ctx, meetingID, scheduler.StatusCancelled)
	return result.Meeting, err
}

// DeleteMeeting removes a meeting with its participants and exclusions.
func (s *MeetingService) DeleteMeeting(ctx context.Context, meetingID string) (err error) {
	if s == nil || s.meetings == nil {
		return fmt.Errorf("MeetingService is not configured")
	}
	ctx, span := startSpan(ctx, meetingServiceName, "DeleteMeeting", attribute.String("meeting_id", meetingID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, meetingServiceName, "DeleteMeeting", "meeting_id", meetingID)

	if err := s.meetings.DeleteMeeting(ctx, meetingID); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to delete meeting", err)
		return err
	}
	s.invalidate()
	logger.Info("meeting deleted")
	return nil
}

// book runs the authoritative path and invalidates cached reports on success.
func (s *MeetingService) book(ctx context.Context, meeting Meeting, commit scheduler.CommitFunc) (scheduler.ConflictReport, error) {
	sm, err := meeting.toScheduler()
	if err != nil {
		return scheduler.ConflictReport{}, domainFieldError("recurrence.frequency", err)
	}
	report, err := s.engine.Book(ctx, sm, func(ctx context.Context) error {
		return mapRepoError(commit(ctx))
	})
	if err != nil {
		return report, mapEngineError(err)
	}
	s.invalidate()
	return report, nil
}

// save stores meeting without a conflict check.
func (s *MeetingService) save(ctx context.Context, meeting Meeting) error {
	if err := s.meetings.UpdateMeeting(ctx, meeting.toRow()); err != nil {
		return mapRepoError(err)
	}
	s.invalidate()
	return nil
}

func (s *MeetingService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

func (s *MeetingService) getMeeting(ctx context.Context, id string) (Meeting, error) {
	if strings.TrimSpace(id) == "" {
		return Meeting{}, ErrNotFound
	}
	row, err := s.meetings.GetMeeting(ctx, id)
	if err != nil {
		return Meeting{}, mapRepoError(err)
	}
	return meetingFromRow(row), nil
}

// findOccurrence locates the occurrence named by params. Start lookups
// expand a narrow horizon around the instant; index lookups walk the series
// within the expander's bound.
func (s *MeetingService) findOccurrence(m Meeting, params CancelOccurrenceParams) (recurrence.Occurrence, bool, error) {
	sm, err := m.toScheduler()
	if err != nil {
		return recurrence.Occurrence{}, false, err
	}
	series := sm.Series()
	series.ExcludedIndices = nil
	series.ExcludedStarts = nil

	if params.Index != nil {
		if *params.Index < 0 {
			return recurrence.Occurrence{}, false, fieldError("index", "must not be negative")
		}
		if slices.Contains(m.ExcludedIndices, *params.Index) {
			return recurrence.Occurrence{}, false, nil
		}
		horizon := interval.Interval{Start: m.Start, End: m.Start.Add(s.expander.MaxHorizon())}
		exp, err := s.expander.Expand(series, horizon)
		if err != nil {
			return recurrence.Occurrence{}, false, err
		}
		for occ := range exp.Occurrences {
			if occ.Index == *params.Index {
				return occ, true, nil
			}
			if occ.Index > *params.Index {
				break
			}
		}
		return recurrence.Occurrence{}, false, nil
	}

	start := *params.Start
	for _, excluded := range m.ExcludedStarts {
		if excluded.Equal(start) {
			return recurrence.Occurrence{}, false, nil
		}
	}
	horizon := interval.Interval{Start: start, End: start.Add(m.End.Sub(m.Start))}
	exp, err := s.expander.Expand(series, horizon)
	if err != nil {
		return recurrence.Occurrence{}, false, err
	}
	for occ := range exp.Occurrences {
		if occ.Interval.Start.Equal(start) {
			return occ, true, nil
		}
	}
	return recurrence.Occurrence{}, false, nil
}

func normalizeMeetingInput(input MeetingInput) MeetingInput {
	out := input
	out.OrganizerID = strings.TrimSpace(input.OrganizerID)
	out.Title = strings.TrimSpace(input.Title)
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		out.Description = &desc
		if desc == "" {
			out.Description = nil
		}
	}
	out.Recurrence.Frequency = strings.ToLower(strings.TrimSpace(input.Recurrence.Frequency))
	if out.Recurrence.Frequency == "" {
		out.Recurrence.Frequency = persistence.FrequencyNone
	}
	participants := make([]string, 0, len(input.ParticipantIDs))
	for _, id := range input.ParticipantIDs {
		participants = append(participants, strings.TrimSpace(id))
	}
	out.ParticipantIDs = sortStrings(uniqueStrings(participants))
	return out
}

func validateMeetingInput(input MeetingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.OrganizerID == "" {
		vErr.add("organizer_id", "organizer is required")
	}
	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	validateCandidate(input.Start, input.End, vErr)
	if len(input.ParticipantIDs) == 0 {
		vErr.add("participant_ids", "at least one participant is required")
	}

	freq, err := recurrence.ParseFrequency(input.Recurrence.Frequency)
	if err != nil {
		vErr.merge(domainFieldError("recurrence.frequency", err))
		return vErr
	}
	rule := recurrence.Rule{
		Frequency:    freq,
		IntervalDays: input.Recurrence.IntervalDays,
		Count:        input.Recurrence.Count,
		Until:        input.Recurrence.Until,
	}
	if err := rule.Validate(); err != nil {
		vErr.merge(domainFieldError("recurrence", err))
	}
	if freq == recurrence.FrequencyNone && (rule.Count > 0 || rule.Until != nil || rule.IntervalDays != 0) {
		vErr.add("recurrence", "count, until and interval_days require a recurring frequency")
	}
	if rule.Until != nil && !input.Start.IsZero() && rule.Until.Before(input.Start) {
		vErr.merge(domainFieldError("recurrence.until", recurrence.ErrInvalidUntil))
	}
	return vErr
}

// initialResponses keeps prior answers of remaining participants and marks
// everyone else pending.
func initialResponses(participants []string, previous map[string]scheduler.ResponseStatus) map[string]scheduler.ResponseStatus {
	out := make(map[string]scheduler.ResponseStatus, len(participants))
	for _, id := range participants {
		if r, ok := previous[id]; ok && r.Valid() {
			out[id] = r
			continue
		}
		out[id] = scheduler.ResponsePending
	}
	return out
}

func scheduleChanged(existing Meeting, input MeetingInput) bool {
	if !existing.Start.Equal(input.Start) || !existing.End.Equal(input.End) {
		return true
	}
	before, after := existing.Recurrence, input.Recurrence
	if before.Frequency != after.Frequency || before.IntervalDays != after.IntervalDays || before.Count != after.Count {
		return true
	}
	switch {
	case before.Until == nil && after.Until == nil:
		return false
	case before.Until == nil || after.Until == nil:
		return true
	default:
		return !before.Until.Equal(*after.Until)
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func sortStrings(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}

// ConflictReportOf extracts the report carried by a booking conflict.
func ConflictReportOf(err error) (scheduler.ConflictReport, bool) {
	var cErr *scheduler.ConflictError
	if errors.As(err, &cErr) {
		return cErr.Report, true
	}
	return scheduler.ConflictReport{}, false
}
