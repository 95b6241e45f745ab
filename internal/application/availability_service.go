package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

const availabilityServiceName = "AvailabilityService"

// AvailabilityStore is the persistence surface for windows and blocked time.
type AvailabilityStore interface {
	persistence.AvailabilityRepository
	persistence.BlockedTimeRepository
}

// AvailabilityService validates and stores declared availability and blocked
// time. Reads of free time go through SchedulingService.
type AvailabilityService struct {
	store       AvailabilityStore
	location    *time.Location
	invalidator Invalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies. loc is the reference timezone
// that window clock times and all-day blocks are interpreted in.
func NewAvailabilityService(store AvailabilityStore, loc *time.Location, invalidator Invalidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		store:       store,
		location:    loc,
		invalidator: invalidator,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetBusinessHours replaces the participant's weekly windows with Monday to
// Friday windows between input.Start and input.End. Date overrides are kept.
func (s *AvailabilityService) SetBusinessHours(ctx context.Context, input BusinessHoursInput) (windows []Window, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("AvailabilityService is not configured")
	}
	ctx, span := startSpan(ctx, availabilityServiceName, "SetBusinessHours")
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "SetBusinessHours", "participant_id", input.ParticipantID)

	participantID := strings.TrimSpace(input.ParticipantID)
	vErr := &ValidationError{}
	if participantID == "" {
		vErr.add("participant_id", "participant id is required")
	}
	start := parseClockOr(input.Start, availability.Clock(8, 0), "start", vErr)
	end := parseClockOr(input.End, availability.Clock(18, 0), "end", vErr)
	if !vErr.HasErrors() && end <= start {
		vErr.merge(domainFieldError("end", availability.ErrInvalidWindow))
	}
	if vErr.HasErrors() {
		logFailure(logger, "business hours rejected", vErr)
		return nil, vErr
	}

	now := s.now()
	windows = availability.BusinessHours(participantID, start, end)
	rows := make([]persistence.AvailabilityWindow, 0, len(windows))
	for i := range windows {
		windows[i].ID = s.idGenerator()
		rows = append(rows, windowRow(windows[i], now))
	}
	if err := s.store.ReplaceWeeklyWindows(ctx, participantID, rows); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to replace weekly windows", err)
		return nil, err
	}
	s.invalidate()

	logger.Info("business hours set", "start", start.String(), "end", end.String())
	return windows, nil
}

// AddWindow stores one weekly window or date override.
func (s *AvailabilityService) AddWindow(ctx context.Context, input WindowInput) (window Window, err error) {
	if s == nil || s.store == nil {
		return Window{}, fmt.Errorf("AvailabilityService is not configured")
	}
	ctx, span := startSpan(ctx, availabilityServiceName, "AddWindow")
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "AddWindow", "participant_id", input.ParticipantID)

	window, vErr := buildWindow(input)
	if vErr.HasErrors() {
		logFailure(logger, "window rejected", vErr)
		return Window{}, vErr
	}
	window.ID = s.idGenerator()

	if err := s.store.CreateWindow(ctx, windowRow(window, s.now())); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to store window", err)
		return Window{}, err
	}
	s.invalidate()

	logger.Info("window added", "window_id", window.ID, "override", window.Override())
	return window, nil
}

// ListWindows returns every window of the participant.
func (s *AvailabilityService) ListWindows(ctx context.Context, participantID string) ([]Window, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("AvailabilityService is not configured")
	}
	rows, err := s.store.ListWindows(ctx, strings.TrimSpace(participantID))
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Window, 0, len(rows))
	for _, row := range rows {
		w, err := domainWindow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// DeleteWindow removes a window.
func (s *AvailabilityService) DeleteWindow(ctx context.Context, windowID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("AvailabilityService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "DeleteWindow", "window_id", windowID)
	if err := s.store.DeleteWindow(ctx, windowID); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to delete window", err)
		return err
	}
	s.invalidate()
	logger.Info("window deleted")
	return nil
}

// AddBlockedTime stores explicit unavailability. All-day entries are widened
// to whole days in the reference timezone before storage.
func (s *AvailabilityService) AddBlockedTime(ctx context.Context, input BlockedTimeInput) (block Block, err error) {
	if s == nil || s.store == nil {
		return Block{}, fmt.Errorf("AvailabilityService is not configured")
	}
	ctx, span := startSpan(ctx, availabilityServiceName, "AddBlockedTime", attribute.Bool("all_day", input.AllDay))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "AddBlockedTime", "participant_id", input.ParticipantID)

	block, vErr := s.buildBlock(input)
	if vErr.HasErrors() {
		logFailure(logger, "blocked time rejected", vErr)
		return Block{}, vErr
	}
	block.ID = s.idGenerator()

	if err := s.store.CreateBlockedTime(ctx, s.blockRow(block)); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to store blocked time", err)
		return Block{}, err
	}
	s.invalidate()

	logger.Info("blocked time added", "block_id", block.ID, "reason", block.Reason)
	return block, nil
}

// ImportBlockedTime stores a batch of blocks, typically parsed from an
// iCalendar document. Entries are validated up front; nothing is stored if
// any is invalid.
func (s *AvailabilityService) ImportBlockedTime(ctx context.Context, participantID string, blocks []Block) (stored []Block, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("AvailabilityService is not configured")
	}
	ctx, span := startSpan(ctx, availabilityServiceName, "ImportBlockedTime", attribute.Int("blocks", len(blocks)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "ImportBlockedTime",
		"participant_id", participantID, "blocks", len(blocks))

	vErr := &ValidationError{}
	stored = make([]Block, 0, len(blocks))
	for i, b := range blocks {
		block, bErr := s.buildBlock(BlockedTimeInput{
			ParticipantID: participantID,
			Start:         b.Interval.Start,
			End:           b.Interval.End,
			Reason:        string(b.Reason),
			AllDay:        b.AllDay,
		})
		for field, msg := range bErr.FieldErrors {
			vErr.add(fmt.Sprintf("blocks[%d].%s", i, field), msg)
		}
		stored = append(stored, block)
	}
	if vErr.HasErrors() {
		logFailure(logger, "blocked time import rejected", vErr)
		return nil, vErr
	}

	for i := range stored {
		stored[i].ID = s.idGenerator()
		if err := s.store.CreateBlockedTime(ctx, s.blockRow(stored[i])); err != nil {
			err = mapRepoError(err)
			logFailure(logger.With("stored", i), "failed to store imported blocked time", err)
			s.invalidate()
			return stored[:i], err
		}
	}
	s.invalidate()

	logger.Info("blocked time imported")
	return stored, nil
}

// ListBlockedTime returns the participant's blocks overlapping [start, end).
func (s *AvailabilityService) ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]Block, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("AvailabilityService is not configured")
	}
	vErr := &ValidationError{}
	validateCandidate(start, end, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}
	rows, err := s.store.ListBlockedTime(ctx, strings.TrimSpace(participantID), start, end)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Block, 0, len(rows))
	for _, row := range rows {
		out = append(out, domainBlock(row))
	}
	return out, nil
}

// DeleteBlockedTime removes a block.
func (s *AvailabilityService) DeleteBlockedTime(ctx context.Context, blockID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("AvailabilityService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "DeleteBlockedTime", "block_id", blockID)
	if err := s.store.DeleteBlockedTime(ctx, blockID); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to delete blocked time", err)
		return err
	}
	s.invalidate()
	logger.Info("blocked time deleted")
	return nil
}

func (s *AvailabilityService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

func (s *AvailabilityService) buildBlock(input BlockedTimeInput) (Block, *ValidationError) {
	vErr := &ValidationError{}
	participantID := strings.TrimSpace(input.ParticipantID)
	if participantID == "" {
		vErr.add("participant_id", "participant id is required")
	}
	validateCandidate(input.Start, input.End, vErr)
	reason, err := availability.ParseReason(input.Reason)
	if err != nil {
		vErr.merge(domainFieldError("reason", err))
	}
	if vErr.HasErrors() {
		return Block{}, vErr
	}

	block := Block{
		ParticipantID: participantID,
		Interval:      interval.Interval{Start: input.Start, End: input.End},
		Reason:        reason,
		AllDay:        input.AllDay,
	}
	block.Interval = block.Span(s.location).UTC()
	return block, vErr
}

func (s *AvailabilityService) blockRow(b Block) persistence.BlockedTime {
	now := s.now()
	return persistence.BlockedTime{
		ID:            b.ID,
		ParticipantID: b.ParticipantID,
		Start:         b.Interval.Start,
		End:           b.Interval.End,
		Reason:        string(b.Reason),
		AllDay:        b.AllDay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func buildWindow(input WindowInput) (Window, *ValidationError) {
	vErr := &ValidationError{}
	w := Window{ParticipantID: strings.TrimSpace(input.ParticipantID), Disabled: input.Disabled}
	if w.ParticipantID == "" {
		vErr.add("participant_id", "participant id is required")
	}

	date := strings.TrimSpace(input.Date)
	switch {
	case date != "" && input.Weekday != nil:
		vErr.add("date", "give either weekday or date, not both")
	case date != "":
		d, err := interval.ParseDate(date)
		if err != nil {
			vErr.add("date", "must use the YYYY-MM-DD format")
		}
		w.Date = d
		w.Weekday = d.Weekday()
	case input.Weekday != nil:
		w.Weekday = time.Weekday(*input.Weekday)
	default:
		vErr.add("weekday", "weekday or date is required")
	}

	var err error
	if w.Start, err = availability.ParseClock(input.Start); err != nil {
		vErr.merge(domainFieldError("start", err))
	}
	if w.End, err = availability.ParseClock(input.End); err != nil {
		vErr.merge(domainFieldError("end", err))
	}
	if w.EffectiveFrom, err = parseOptionalDate(strings.TrimSpace(input.EffectiveFrom)); err != nil {
		vErr.add("effective_from", "must use the YYYY-MM-DD format")
	}
	if w.EffectiveUntil, err = parseOptionalDate(strings.TrimSpace(input.EffectiveUntil)); err != nil {
		vErr.add("effective_until", "must use the YYYY-MM-DD format")
	}
	if !w.EffectiveFrom.IsZero() && !w.EffectiveUntil.IsZero() && w.EffectiveUntil.Before(w.EffectiveFrom) {
		vErr.add("effective_until", "must not precede effective_from")
	}
	if vErr.HasErrors() {
		return Window{}, vErr
	}
	if err := w.Validate(); err != nil {
		field := "end"
		if errors.Is(err, availability.ErrInvalidWeekday) {
			field = "weekday"
		}
		vErr.merge(domainFieldError(field, err))
		return Window{}, vErr
	}
	return w, vErr
}

func parseClockOr(s string, fallback availability.ClockTime, field string, vErr *ValidationError) availability.ClockTime {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	c, err := availability.ParseClock(s)
	if err != nil {
		vErr.merge(domainFieldError(field, err))
		return fallback
	}
	return c
}
