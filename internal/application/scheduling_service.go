package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

const schedulingServiceName = "SchedulingService"

// SchedulingService exposes the engine's read operations to the API layer:
// advisory conflict checks, slot suggestions, availability and agendas.
type SchedulingService struct {
	engine *scheduler.Engine
	cache  *reportCache
	now    func() time.Time
	logger *slog.Logger
}

// NewSchedulingService wires the engine with an advisory report cache that
// keeps entries for cacheTTL. A non-positive cacheTTL disables caching.
func NewSchedulingService(engine *scheduler.Engine, cacheTTL time.Duration, now func() time.Time, logger *slog.Logger) *SchedulingService {
	if now == nil {
		now = time.Now
	}
	svc := &SchedulingService{
		engine: engine,
		now:    now,
		logger: defaultLogger(logger),
	}
	if cacheTTL > 0 {
		svc.cache = newReportCache(cacheTTL, 0, now)
	}
	return svc
}

// Invalidate drops cached advisory reports. Services that write meetings,
// windows or blocked time call it after every successful write.
func (s *SchedulingService) Invalidate() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// CheckConflicts reports every overlap between the candidate and the
// participants' meetings and blocked time. The result is advisory.
func (s *SchedulingService) CheckConflicts(ctx context.Context, params CheckConflictsParams) (report scheduler.ConflictReport, err error) {
	if s == nil || s.engine == nil {
		return scheduler.ConflictReport{}, fmt.Errorf("SchedulingService is not configured")
	}
	ctx, span := startSpan(ctx, schedulingServiceName, "CheckConflicts",
		attribute.Int("participants", len(params.ParticipantIDs)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "CheckConflicts",
		"participant_count", len(params.ParticipantIDs))

	vErr := &ValidationError{}
	validateCandidate(params.Start, params.End, vErr)
	validateParticipants(params.ParticipantIDs, vErr)
	if vErr.HasErrors() {
		logFailure(logger, "conflict check rejected", vErr)
		return scheduler.ConflictReport{}, vErr
	}

	key := buildReportCacheKey(params.Start, params.End, params.ParticipantIDs, params.IgnoreMeetingID)
	if cached, ok := s.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		logger.Debug("conflict report served from cache", "has_conflict", cached.HasConflict)
		return cached, nil
	}

	report, err = s.engine.CheckConflicts(ctx, scheduler.CheckRequest{
		Candidate:       interval.Interval{Start: params.Start, End: params.End},
		ParticipantIDs:  params.ParticipantIDs,
		IgnoreMeetingID: params.IgnoreMeetingID,
	})
	if err != nil {
		err = mapEngineError(err)
		logFailure(logger, "conflict check failed", err)
		return scheduler.ConflictReport{}, err
	}
	s.cache.Store(key, report)

	span.SetAttributes(attribute.Bool("conflict", report.HasConflict), attribute.Int("conflicts", len(report.Conflicts)))
	logger.Info("conflict check completed",
		"has_conflict", report.HasConflict,
		"conflicts", len(report.Conflicts),
		"truncated", report.Truncated,
	)
	return report, nil
}

// SuggestSlots searches for conflict-free slots common to every participant.
func (s *SchedulingService) SuggestSlots(ctx context.Context, params SuggestSlotsParams) (out scheduler.Suggestions, err error) {
	if s == nil || s.engine == nil {
		return scheduler.Suggestions{}, fmt.Errorf("SchedulingService is not configured")
	}
	ctx, span := startSpan(ctx, schedulingServiceName, "SuggestSlots",
		attribute.Int("participants", len(params.ParticipantIDs)),
		attribute.Int("duration_minutes", params.DurationMinutes))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "SuggestSlots",
		"participant_count", len(params.ParticipantIDs),
		"duration_minutes", params.DurationMinutes,
	)

	now := s.now()
	loc := s.engine.Location()
	vErr := &ValidationError{}
	validateParticipants(params.ParticipantIDs, vErr)
	if params.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "must be a positive number of minutes")
	}
	if params.NumSuggestions < 0 {
		vErr.add("num_suggestions", "must not be negative")
	}
	if params.SearchWindowDays < 0 {
		vErr.add("search_window_days", "must not be negative")
	}
	preferred := interval.DateOf(now, loc)
	if strings.TrimSpace(params.PreferredDate) != "" {
		d, perr := interval.ParseDate(strings.TrimSpace(params.PreferredDate))
		if perr != nil {
			vErr.add("preferred_date", "must use the YYYY-MM-DD format")
		} else {
			preferred = d
		}
	}
	var preferredTime *availability.ClockTime
	if strings.TrimSpace(params.PreferredTime) != "" {
		c, perr := availability.ParseClock(params.PreferredTime)
		if perr != nil {
			vErr.merge(domainFieldError("preferred_time", perr))
		} else {
			preferredTime = &c
		}
	}
	if vErr.HasErrors() {
		logFailure(logger, "suggestion request rejected", vErr)
		return scheduler.Suggestions{}, vErr
	}

	req := scheduler.SuggestRequest{
		PreferredDate:    preferred,
		Duration:         time.Duration(params.DurationMinutes) * time.Minute,
		ParticipantIDs:   params.ParticipantIDs,
		Count:            params.NumSuggestions,
		SearchWindowDays: params.SearchWindowDays,
		PreferredTime:    preferredTime,
		IgnoreMeetingID:  params.IgnoreMeetingID,
	}
	if !params.IncludePast {
		req.NotBefore = now
	}
	out, err = s.engine.SuggestSlots(ctx, req)
	if err != nil {
		err = mapEngineError(err)
		logFailure(logger, "suggestion search failed", err)
		return scheduler.Suggestions{}, err
	}

	span.SetAttributes(attribute.Int("slots", len(out.Slots)), attribute.String("reason", string(out.Reason)))
	logger.Info("suggestion search completed",
		"slots", len(out.Slots),
		"reason", out.Reason,
		"truncated", out.Truncated,
	)
	return out, nil
}

// ResolveAvailability returns a participant's free time on date (YYYY-MM-DD)
// net of blocked time.
func (s *SchedulingService) ResolveAvailability(ctx context.Context, participantID, date string) (day AvailabilityDay, err error) {
	if s == nil || s.engine == nil {
		return AvailabilityDay{}, fmt.Errorf("SchedulingService is not configured")
	}
	ctx, span := startSpan(ctx, schedulingServiceName, "ResolveAvailability")
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "ResolveAvailability",
		"participant_id", participantID, "date", date)

	vErr := &ValidationError{}
	if strings.TrimSpace(participantID) == "" {
		vErr.add("participant_id", "participant id is required")
	}
	d, perr := interval.ParseDate(strings.TrimSpace(date))
	if perr != nil {
		vErr.add("date", "must use the YYYY-MM-DD format")
	}
	if vErr.HasErrors() {
		logFailure(logger, "availability request rejected", vErr)
		return AvailabilityDay{}, vErr
	}

	free, err := s.engine.ResolveAvailability(ctx, participantID, d)
	if err != nil {
		err = mapEngineError(err)
		logFailure(logger, "availability resolution failed", err)
		return AvailabilityDay{}, err
	}

	logger.Debug("availability resolved", "free_spans", len(free))
	return AvailabilityDay{
		ParticipantID: strings.TrimSpace(participantID),
		Date:          d.String(),
		Free:          freeSpans(free),
	}, nil
}

// NextAvailable finds the earliest common slot at or after params.After
// (now when zero). The boolean is false when the search window holds none.
func (s *SchedulingService) NextAvailable(ctx context.Context, params NextAvailableParams) (slot FreeSpan, found bool, err error) {
	if s == nil || s.engine == nil {
		return FreeSpan{}, false, fmt.Errorf("SchedulingService is not configured")
	}
	ctx, span := startSpan(ctx, schedulingServiceName, "NextAvailable",
		attribute.Int("participants", len(params.ParticipantIDs)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "NextAvailable",
		"participant_count", len(params.ParticipantIDs))

	vErr := &ValidationError{}
	validateParticipants(params.ParticipantIDs, vErr)
	if params.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "must be a positive number of minutes")
	}
	if params.MaxDays < 0 {
		vErr.add("max_days", "must not be negative")
	}
	if vErr.HasErrors() {
		logFailure(logger, "next available request rejected", vErr)
		return FreeSpan{}, false, vErr
	}

	after := params.After
	if after.IsZero() {
		after = s.now()
	}
	iv, found, err := s.engine.NextAvailable(ctx, after, time.Duration(params.DurationMinutes)*time.Minute, params.ParticipantIDs, params.MaxDays)
	if err != nil {
		err = mapEngineError(err)
		logFailure(logger, "next available search failed", err)
		return FreeSpan{}, false, err
	}
	logger.Info("next available search completed", "found", found)
	if !found {
		return FreeSpan{}, false, nil
	}
	return FreeSpan{Start: iv.Start.UTC(), End: iv.End.UTC()}, true, nil
}

// Agenda lists a participant's meeting occurrences and blocked time within
// the requested range, in ascending order.
func (s *SchedulingService) Agenda(ctx context.Context, params AgendaParams) (agenda Agenda, err error) {
	if s == nil || s.engine == nil {
		return Agenda{}, fmt.Errorf("SchedulingService is not configured")
	}
	ctx, span := startSpan(ctx, schedulingServiceName, "Agenda", attribute.String("period", string(params.Period)))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "Agenda",
		"participant_id", params.ParticipantID, "period", params.Period)

	start, end, vErr := s.agendaRange(params)
	if strings.TrimSpace(params.ParticipantID) == "" {
		vErr.add("participant_id", "participant id is required")
	}
	if vErr.HasErrors() {
		logFailure(logger, "agenda request rejected", vErr)
		return Agenda{}, vErr
	}

	entries, truncated, err := s.engine.Agenda(ctx, params.ParticipantID, interval.Interval{Start: start, End: end})
	if err != nil {
		err = mapEngineError(err)
		logFailure(logger, "agenda listing failed", err)
		return Agenda{}, err
	}

	logger.Debug("agenda listed", "entries", len(entries), "truncated", truncated)
	return Agenda{
		ParticipantID: strings.TrimSpace(params.ParticipantID),
		Start:         start.UTC(),
		End:           end.UTC(),
		Entries:       entries,
		Truncated:     truncated,
	}, nil
}

func (s *SchedulingService) agendaRange(params AgendaParams) (time.Time, time.Time, *ValidationError) {
	vErr := &ValidationError{}
	reference := params.Reference
	if reference.IsZero() {
		reference = s.now()
	}

	var start, end time.Time
	switch params.Period {
	case ListPeriodNone:
	case ListPeriodDay, ListPeriodWeek, ListPeriodMonth:
		start, end = computePeriodRange(params.Period, reference, s.engine.Location())
	default:
		vErr.add("period", "must be one of day, week or month")
		return start, end, vErr
	}
	if params.Start != nil {
		start = *params.Start
	}
	if params.End != nil {
		end = *params.End
	}
	switch {
	case start.IsZero() || end.IsZero():
		vErr.add("period", "either a period or both start and end are required")
	case !end.After(start):
		vErr.add("time", "end must be after start")
	}
	return start, end, vErr
}

// computePeriodRange resolves a period preset around reference in loc.
// Weeks start on Monday.
func computePeriodRange(period ListPeriod, reference time.Time, loc *time.Location) (time.Time, time.Time) {
	day := interval.DateOf(reference, loc)
	switch period {
	case ListPeriodDay:
		return day.Start(loc), day.AddDays(1).Start(loc)
	case ListPeriodWeek:
		// In Go, Monday == 1, Sunday == 0.
		monday := day.AddDays(-((int(day.Weekday()) + 6) % 7))
		return monday.Start(loc), monday.AddDays(7).Start(loc)
	case ListPeriodMonth:
		first := interval.Date{Year: day.Year, Month: day.Month, Day: 1}
		next := time.Date(day.Year, day.Month+1, 1, 0, 0, 0, 0, loc)
		return first.Start(loc), next
	default:
		return time.Time{}, time.Time{}
	}
}

func validateCandidate(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("time", "end must be after start")
	}
}

func validateParticipants(ids []string, vErr *ValidationError) {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return
		}
	}
	vErr.add("participant_ids", "at least one participant is required")
}

func freeSpans(in []interval.Interval) []FreeSpan {
	out := make([]FreeSpan, 0, len(in))
	for _, iv := range in {
		out = append(out, FreeSpan{Start: iv.Start.UTC(), End: iv.End.UTC()})
	}
	return out
}
