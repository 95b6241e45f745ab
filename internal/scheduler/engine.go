package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

// Engine answers conflict, suggestion and availability queries over a Source.
// It keeps no mutable state; concurrent use is safe as long as the Source and
// Claimer are.
type Engine struct {
	source    Source
	claimer   Claimer
	policy    Policy
	expander  *recurrence.Engine
	resolver  *availability.Resolver
	detector  *Detector
	suggester *Suggester
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClaimer installs the serialization boundary used by Book.
func WithClaimer(c Claimer) Option {
	return func(e *Engine) {
		e.claimer = c
	}
}

// NewEngine constructs an Engine. Unset policy fields take DefaultPolicy values.
func NewEngine(source Source, policy Policy, opts ...Option) *Engine {
	policy = policy.withDefaults()
	expander := recurrence.NewEngine(policy.Location, policy.MaxRecurrenceHorizon)
	e := &Engine{
		source:    source,
		policy:    policy,
		expander:  expander,
		resolver:  availability.NewResolver(policy.Location, policy.StrictAvailability),
		detector:  NewDetector(expander),
		suggester: NewSuggester(policy),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// WithPolicy returns a copy of the engine sharing its source and claimer but
// using policy.
func (e *Engine) WithPolicy(policy Policy) *Engine {
	return NewEngine(e.source, policy, WithClaimer(e.claimer))
}

// Location reports the reference timezone.
func (e *Engine) Location() *time.Location {
	return e.policy.Location
}

// CheckRequest is the input of CheckConflicts.
type CheckRequest struct {
	Candidate       interval.Interval
	ParticipantIDs  []string
	IgnoreMeetingID string
}

// CheckConflicts is the advisory conflict check: it reads a snapshot, takes
// no claims and may be stale by the time the caller acts on it.
func (e *Engine) CheckConflicts(ctx context.Context, req CheckRequest) (ConflictReport, error) {
	if req.Candidate.Empty() {
		return ConflictReport{}, ErrInvalidInterval
	}
	participants := normalizeIDs(req.ParticipantIDs)
	if len(participants) == 0 {
		return ConflictReport{}, invalidField("participant_ids", "at least one participant is required")
	}
	candidate := req.Candidate.In(e.policy.Location)

	calendars, err := e.calendars(ctx, participants, candidate)
	if err != nil {
		return ConflictReport{}, err
	}
	if err := e.ensureKnown(ctx, participants, calendars, interval.DateOf(candidate.Start, e.policy.Location)); err != nil {
		return ConflictReport{}, err
	}

	report, err := e.detector.Check(candidate, calendars, req.IgnoreMeetingID)
	if err != nil {
		return ConflictReport{}, err
	}
	return report.utc(), nil
}

// SuggestSlots searches for conflict-free slots common to every participant.
func (e *Engine) SuggestSlots(ctx context.Context, req SuggestRequest) (Suggestions, error) {
	plan, err := e.suggester.Plan(req)
	if err != nil {
		return Suggestions{}, err
	}
	loc := e.policy.Location
	horizon := plan.Horizon(loc)

	calendars, err := e.calendars(ctx, plan.ParticipantIDs, horizon)
	if err != nil {
		return Suggestions{}, err
	}
	if err := e.ensureKnown(ctx, plan.ParticipantIDs, calendars, plan.PreferredDate); err != nil {
		return Suggestions{}, err
	}
	busy, err := e.detector.Index(calendars, horizon, plan.IgnoreMeetingID)
	if err != nil {
		return Suggestions{}, err
	}

	blocks := make(map[string][]availability.Block, len(calendars))
	for _, cal := range calendars {
		blocks[cal.ParticipantID] = cal.Blocks
	}
	free := func(participantID string, day interval.Date) ([]interval.Interval, error) {
		windows, err := e.source.LoadAvailability(ctx, participantID, day)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load availability for %s: %w", participantID, err)
		}
		return e.resolver.FreeIntervals(day, windows, blocks[participantID]), nil
	}

	out, err := e.suggester.Suggest(plan, free, busy.Free)
	if err != nil {
		return Suggestions{}, err
	}
	out.Truncated = busy.truncated
	return out, nil
}

// ResolveAvailability returns a participant's free time on day, net of
// blocked time but not of meetings.
func (e *Engine) ResolveAvailability(ctx context.Context, participantID string, day interval.Date) ([]interval.Interval, error) {
	ids := normalizeIDs([]string{participantID})
	if len(ids) == 0 {
		return nil, invalidField("participant_id", "is required")
	}
	if day.IsZero() {
		return nil, invalidField("date", "is required")
	}
	loc := e.policy.Location
	span := day.Span(loc)

	windows, err := e.source.LoadAvailability(ctx, ids[0], day)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load availability for %s: %w", ids[0], err)
	}
	blocks, err := e.source.LoadBlockedTime(ctx, ids[0], widen(span, 24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("scheduler: load blocked time for %s: %w", ids[0], err)
	}
	if len(windows) == 0 {
		if err := e.ensureKnown(ctx, ids, []Calendar{{ParticipantID: ids[0], Blocks: blocks}}, day); err != nil {
			return nil, err
		}
	}
	return toUTC(e.resolver.FreeIntervals(day, windows, blocks)), nil
}

// NextAvailable returns the first conflict-free slot of duration starting at
// or after after, searching at most maxDays days (policy default when zero).
func (e *Engine) NextAvailable(ctx context.Context, after time.Time, duration time.Duration, participantIDs []string, maxDays int) (interval.Interval, bool, error) {
	if maxDays <= 0 {
		maxDays = e.policy.NextAvailableDays
	}
	loc := e.policy.Location
	search := e
	if maxDays > e.policy.MaxSearchWindowDays {
		p := e.policy
		p.MaxSearchWindowDays = maxDays
		search = e.WithPolicy(p)
	}
	out, err := search.SuggestSlots(ctx, SuggestRequest{
		PreferredDate:    interval.DateOf(after, loc),
		Duration:         duration,
		ParticipantIDs:   participantIDs,
		Count:            1,
		SearchWindowDays: maxDays,
		NotBefore:        after,
	})
	if err != nil {
		return interval.Interval{}, false, err
	}
	if len(out.Slots) == 0 {
		return interval.Interval{}, false, nil
	}
	return out.Slots[0], true, nil
}

// BusyEntry is one occupied span on a participant's calendar.
type BusyEntry struct {
	Kind            ConflictKind
	SourceID        string
	Title           string
	OccurrenceIndex int
	Interval        interval.Interval
	Reason          availability.Reason
}

// Agenda lists the participant's meeting occurrences and blocked time within
// horizon in ascending order. Declined and cancelled meetings are omitted.
func (e *Engine) Agenda(ctx context.Context, participantID string, horizon interval.Interval) ([]BusyEntry, bool, error) {
	if horizon.Empty() {
		return nil, false, ErrInvalidInterval
	}
	ids := normalizeIDs([]string{participantID})
	if len(ids) == 0 {
		return nil, false, invalidField("participant_id", "is required")
	}
	loc := e.policy.Location
	horizon = horizon.In(loc)

	calendars, err := e.calendars(ctx, ids, horizon)
	if err != nil {
		return nil, false, err
	}
	cal := calendars[0]

	var (
		out       []BusyEntry
		truncated bool
	)
	for _, m := range cal.Meetings {
		if !m.Occupies(cal.ParticipantID) {
			continue
		}
		exp, err := e.expander.Expand(m.Series(), horizon)
		if err != nil {
			return nil, false, fmt.Errorf("scheduler: expand meeting %s: %w", m.ID, err)
		}
		truncated = truncated || exp.Truncated
		for occ := range exp.Occurrences {
			out = append(out, BusyEntry{
				Kind:            ConflictKindMeeting,
				SourceID:        m.ID,
				Title:           m.Title,
				OccurrenceIndex: occ.Index,
				Interval:        occ.Interval.UTC(),
			})
		}
	}
	for _, b := range cal.Blocks {
		span := b.Span(loc)
		if !span.Overlaps(horizon) {
			continue
		}
		out = append(out, BusyEntry{
			Kind:     ConflictKindBlockedTime,
			SourceID: b.ID,
			Interval: span.UTC(),
			Reason:   b.Reason,
		})
	}
	sortBusy(out)
	return out, truncated, nil
}

// calendars loads meetings and blocked time for each participant. Blocked
// time is fetched over a horizon widened by a day so that all-day entries
// are found.
func (e *Engine) calendars(ctx context.Context, participants []string, horizon interval.Interval) ([]Calendar, error) {
	out := make([]Calendar, 0, len(participants))
	for _, id := range participants {
		meetings, err := e.source.LoadMeetings(ctx, id, horizon)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load meetings for %s: %w", id, err)
		}
		blocks, err := e.source.LoadBlockedTime(ctx, id, widen(horizon, 24*time.Hour))
		if err != nil {
			return nil, fmt.Errorf("scheduler: load blocked time for %s: %w", id, err)
		}
		out = append(out, Calendar{ParticipantID: id, Meetings: meetings, Blocks: blocks})
	}
	return out, nil
}

// ensureKnown rejects unknown participants when the policy is strict. A
// Source implementing ParticipantDirectory is authoritative; otherwise a
// participant is unknown when it has no meetings, no blocked time and no
// windows for day.
func (e *Engine) ensureKnown(ctx context.Context, participants []string, calendars []Calendar, day interval.Date) error {
	if !e.policy.StrictParticipants {
		return nil
	}
	if dir, ok := e.source.(ParticipantDirectory); ok {
		missing, err := dir.MissingParticipantIDs(ctx, participants)
		if err != nil {
			return fmt.Errorf("scheduler: resolve participants: %w", err)
		}
		if len(missing) > 0 {
			return &UnknownParticipantError{IDs: normalizeIDs(missing)}
		}
		return nil
	}

	byID := make(map[string]Calendar, len(calendars))
	for _, cal := range calendars {
		byID[cal.ParticipantID] = cal
	}
	var missing []string
	for _, id := range participants {
		if cal, ok := byID[id]; ok && !cal.Empty() {
			continue
		}
		windows, err := e.source.LoadAvailability(ctx, id, day)
		if err != nil {
			return fmt.Errorf("scheduler: load availability for %s: %w", id, err)
		}
		if len(windows) == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &UnknownParticipantError{IDs: missing}
	}
	return nil
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInterval) || errors.Is(err, ErrInvalidRequest)
}
