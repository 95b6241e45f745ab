package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

// CommitFunc persists a booking. It runs while every claim is held.
type CommitFunc func(ctx context.Context) error

// Book is the authoritative path. It claims every (attendee, day) touched by
// the meeting's occurrences, re-reads the calendars, and runs commit only if
// no occurrence conflicts. Claims are acquired in sorted key order and
// released after commit returns. A lost race surfaces as *ConflictError.
//
// Recurring meetings are checked over their first MaxRecurrenceHorizon; the
// returned report is flagged Truncated when the series extends further.
func (e *Engine) Book(ctx context.Context, meeting Meeting, commit CommitFunc) (ConflictReport, error) {
	if e.claimer == nil {
		return ConflictReport{}, ErrNoClaimer
	}
	if meeting.Anchor.Empty() {
		return ConflictReport{}, ErrInvalidInterval
	}
	if err := meeting.Rule.Validate(); err != nil {
		return ConflictReport{}, invalidField("recurrence", err.Error())
	}
	attendees := meeting.Attendees()
	if len(attendees) == 0 {
		return ConflictReport{}, invalidField("participant_ids", "at least one participant is required")
	}

	loc := e.policy.Location
	horizon := interval.Interval{
		Start: meeting.Anchor.Start.In(loc),
		End:   meeting.Anchor.Start.In(loc).Add(e.policy.MaxRecurrenceHorizon),
	}
	if meeting.Anchor.End.After(horizon.End) {
		horizon.End = meeting.Anchor.End.In(loc)
	}
	exp, err := e.expander.Expand(meeting.Series(), horizon)
	if err != nil {
		return ConflictReport{}, invalidField("recurrence", err.Error())
	}
	occurrences := exp.Collect()
	unbounded := meeting.Rule.Frequency != recurrence.FrequencyNone && !meeting.Rule.Bounded()
	truncated := exp.Truncated || unbounded || extendsBeyond(e, meeting, horizon)

	var blocking []string
	for _, id := range attendees {
		if meeting.Responses[id] != ResponseDeclined {
			blocking = append(blocking, id)
		}
	}

	// No blocking attendee or no remaining occurrence means nothing to
	// protect: the booking cannot conflict.
	if keys := claimKeys(blocking, occurrences, loc); len(keys) > 0 {
		release, err := e.claimer.Acquire(ctx, keys)
		if err != nil {
			return ConflictReport{}, fmt.Errorf("scheduler: acquire claims: %w", err)
		}
		defer func() {
			_ = release(context.WithoutCancel(ctx))
		}()
	}

	report := ConflictReport{Truncated: truncated}
	if len(occurrences) > 0 && len(blocking) > 0 {
		span := interval.Interval{Start: occurrences[0].Interval.Start, End: occurrences[len(occurrences)-1].Interval.End}
		calendars, err := e.calendars(ctx, blocking, span)
		if err != nil {
			return ConflictReport{}, err
		}
		if err := e.ensureKnown(ctx, blocking, calendars, interval.DateOf(meeting.Anchor.Start, loc)); err != nil {
			return ConflictReport{}, err
		}
		busy, err := e.detector.Index(calendars, span, meeting.ID)
		if err != nil {
			return ConflictReport{}, err
		}
		reports := make([]ConflictReport, 0, len(occurrences))
		for _, occ := range occurrences {
			reports = append(reports, busy.Check(occ.Interval))
		}
		merged := mergeReports(reports...)
		merged.Truncated = merged.Truncated || truncated
		report = merged.utc()
	}
	if report.HasConflict {
		return report, &ConflictError{Report: report}
	}

	if commit != nil {
		if err := commit(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ClaimKey names the exclusive claim for one participant on one day.
func ClaimKey(participantID string, day interval.Date) string {
	return "claim:" + participantID + ":" + day.String()
}

// claimKeys returns the sorted keys for every participant on every day an
// occurrence touches.
func claimKeys(participants []string, occurrences []recurrence.Occurrence, loc *time.Location) []string {
	days := make(map[interval.Date]struct{})
	for _, occ := range occurrences {
		first := interval.DateOf(occ.Interval.Start, loc)
		last := interval.DateOf(occ.Interval.End.Add(-time.Nanosecond), loc)
		for d := first; !d.After(last); d = d.AddDays(1) {
			days[d] = struct{}{}
		}
	}
	keys := make([]string, 0, len(days)*len(participants))
	for _, id := range participants {
		for d := range days {
			keys = append(keys, ClaimKey(id, d))
		}
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}

// extendsBeyond reports whether a bounded series keeps producing occurrences
// after the checked horizon.
func extendsBeyond(e *Engine, meeting Meeting, horizon interval.Interval) bool {
	if !meeting.Rule.Bounded() {
		return false
	}
	tail := interval.Interval{Start: horizon.End, End: horizon.End.Add(e.policy.MaxRecurrenceHorizon)}
	exp, err := e.expander.Expand(meeting.Series(), tail)
	if err != nil {
		return false
	}
	for range exp.Occurrences {
		return true
	}
	return false
}

func sortBusy(entries []BusyEntry) {
	slices.SortStableFunc(entries, func(a, b BusyEntry) int {
		return cmp.Or(
			a.Interval.Start.Compare(b.Interval.Start),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.SourceID, b.SourceID),
		)
	})
}
