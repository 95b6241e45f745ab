package scheduler

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

// ConflictKind describes what occupies the participant.
type ConflictKind string

const (
	// ConflictKindMeeting indicates an occurrence of another meeting.
	ConflictKindMeeting ConflictKind = "meeting"
	// ConflictKindBlockedTime indicates a blocked time entry.
	ConflictKindBlockedTime ConflictKind = "blocked_time"
)

// Conflict details one overlap between the candidate and a participant's
// existing commitment.
type Conflict struct {
	ParticipantID string
	Kind          ConflictKind
	SourceID      string
	// OccurrenceIndex is the sequence index for meeting conflicts.
	OccurrenceIndex int
	// Busy is the full interval of the conflicting occurrence or block.
	Busy interval.Interval
	// Overlap is the shared portion of Busy and the candidate.
	Overlap interval.Interval
}

// ConflictReport is the outcome of a conflict check.
type ConflictReport struct {
	HasConflict bool
	Conflicts   []Conflict
	// Truncated is set when a recurring series had to be clamped during expansion.
	Truncated bool
}

func (r ConflictReport) utc() ConflictReport {
	for i := range r.Conflicts {
		r.Conflicts[i].Busy = r.Conflicts[i].Busy.UTC()
		r.Conflicts[i].Overlap = r.Conflicts[i].Overlap.UTC()
	}
	return r
}

// Detector finds overlaps between candidates and calendars.
type Detector struct {
	expander *recurrence.Engine
}

// NewDetector constructs a Detector using expander for recurring meetings.
func NewDetector(expander *recurrence.Engine) *Detector {
	if expander == nil {
		expander = recurrence.NewEngine(nil, 0)
	}
	return &Detector{expander: expander}
}

// Check reports every commitment overlapping candidate for the calendars'
// participants. Occurrences of ignoreMeetingID are skipped.
func (d *Detector) Check(candidate interval.Interval, calendars []Calendar, ignoreMeetingID string) (ConflictReport, error) {
	index, err := d.Index(calendars, candidate, ignoreMeetingID)
	if err != nil {
		return ConflictReport{}, err
	}
	return index.Check(candidate), nil
}

// Index expands every calendar over horizon once so that many candidates
// inside horizon can be checked cheaply.
func (d *Detector) Index(calendars []Calendar, horizon interval.Interval, ignoreMeetingID string) (*BusyIndex, error) {
	loc := d.expander.Location()
	horizon = horizon.In(loc)
	index := &BusyIndex{}

	for _, cal := range calendars {
		for _, m := range cal.Meetings {
			if m.ID == ignoreMeetingID && ignoreMeetingID != "" {
				continue
			}
			if !m.Occupies(cal.ParticipantID) {
				continue
			}
			exp, err := d.expander.Expand(m.Series(), horizon)
			if err != nil {
				return nil, fmt.Errorf("scheduler: expand meeting %s: %w", m.ID, err)
			}
			index.truncated = index.truncated || exp.Truncated
			for occ := range exp.Occurrences {
				index.entries = append(index.entries, busyEntry{
					participantID: cal.ParticipantID,
					kind:          ConflictKindMeeting,
					sourceID:      m.ID,
					index:         occ.Index,
					span:          occ.Interval,
				})
			}
		}
		for _, b := range cal.Blocks {
			span := b.Span(loc).In(loc)
			if !span.Overlaps(horizon) {
				continue
			}
			index.entries = append(index.entries, busyEntry{
				participantID: cal.ParticipantID,
				kind:          ConflictKindBlockedTime,
				sourceID:      b.ID,
				span:          span,
			})
		}
	}

	slices.SortFunc(index.entries, func(a, b busyEntry) int {
		return a.span.Start.Compare(b.span.Start)
	})
	return index, nil
}

// BusyIndex is a participant-tagged list of busy spans sorted by start.
type BusyIndex struct {
	entries   []busyEntry
	truncated bool
}

type busyEntry struct {
	participantID string
	kind          ConflictKind
	sourceID      string
	index         int
	span          interval.Interval
}

// Check reports the entries overlapping candidate. A zero-length candidate
// never conflicts.
func (b *BusyIndex) Check(candidate interval.Interval) ConflictReport {
	report := ConflictReport{Truncated: b.truncated}
	if candidate.Empty() {
		return report
	}
	for _, e := range b.entries {
		if !e.span.Start.Before(candidate.End) {
			break
		}
		overlap, ok := e.span.Intersect(candidate)
		if !ok {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			ParticipantID:   e.participantID,
			Kind:            e.kind,
			SourceID:        e.sourceID,
			OccurrenceIndex: e.index,
			Busy:            e.span,
			Overlap:         overlap,
		})
	}
	sortConflicts(report.Conflicts)
	report.HasConflict = len(report.Conflicts) > 0
	return report
}

// Free reports whether candidate overlaps nothing.
func (b *BusyIndex) Free(candidate interval.Interval) bool {
	if candidate.Empty() {
		return true
	}
	for _, e := range b.entries {
		if !e.span.Start.Before(candidate.End) {
			return true
		}
		if e.span.Overlaps(candidate) {
			return false
		}
	}
	return true
}

// Spans returns the busy spans for participantID in ascending order.
func (b *BusyIndex) Spans(participantID string) []interval.Interval {
	var out []interval.Interval
	for _, e := range b.entries {
		if e.participantID == participantID {
			out = append(out, e.span)
		}
	}
	return out
}

// sortConflicts orders by overlap start, then participant, then source.
func sortConflicts(conflicts []Conflict) {
	slices.SortStableFunc(conflicts, func(a, b Conflict) int {
		return cmp.Or(
			a.Overlap.Start.Compare(b.Overlap.Start),
			cmp.Compare(a.ParticipantID, b.ParticipantID),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.SourceID, b.SourceID),
			cmp.Compare(a.OccurrenceIndex, b.OccurrenceIndex),
		)
	})
}

func mergeReports(reports ...ConflictReport) ConflictReport {
	var out ConflictReport
	seen := make(map[string]struct{})
	for _, r := range reports {
		out.Truncated = out.Truncated || r.Truncated
		for _, c := range r.Conflicts {
			key := fmt.Sprintf("%s|%s|%s|%d|%d", c.ParticipantID, c.Kind, c.SourceID, c.OccurrenceIndex, c.Overlap.Start.UnixNano())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Conflicts = append(out.Conflicts, c)
		}
	}
	sortConflicts(out.Conflicts)
	out.HasConflict = len(out.Conflicts) > 0
	return out
}

// widen extends horizon by d on both sides.
func widen(h interval.Interval, d time.Duration) interval.Interval {
	return interval.Interval{Start: h.Start.Add(-d), End: h.End.Add(d)}
}
