// Package interval provides half-open time ranges and the set operations the
// scheduling engine builds on.
package interval

import (
	"errors"
	"slices"
	"time"
)

// ErrInvalidInterval indicates an interval whose end is not strictly after its start.
var ErrInvalidInterval = errors.New("interval: end must be after start")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New validates and constructs an interval.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Duration reports End - Start. Zero or negative durations are empty intervals.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether both intervals share at least one instant. Touching
// boundaries and empty intervals never overlap.
func (i Interval) Overlaps(other Interval) bool {
	if i.Empty() || other.Empty() {
		return false
	}
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Intersect returns the shared portion and whether it is non-empty.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	if !i.Overlaps(other) {
		return Interval{}, false
	}
	out := Interval{Start: latest(i.Start, other.Start), End: earliest(i.End, other.End)}
	return out, true
}

// Contains reports whether other lies entirely inside i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// In re-expresses both bounds in loc without changing the instants.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// UTC is shorthand for In(time.UTC).
func (i Interval) UTC() Interval {
	return i.In(time.UTC)
}

// Equal compares instants, ignoring location.
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

// Day returns midnight-to-midnight of the calendar day containing t in loc.
func Day(t time.Time, loc *time.Location) Interval {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// Merge returns the union of the input as an ascending list in which no two
// intervals touch or overlap. Empty intervals are dropped.
func Merge(in []Interval) []Interval {
	work := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			work = append(work, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}
	sortByStart(work)

	out := []Interval{work[0]}
	for _, iv := range work[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes every interval in cut from base. Both inputs may be
// unsorted; the result is merged and ascending.
func Subtract(base, cut []Interval) []Interval {
	base = Merge(base)
	cut = Merge(cut)
	if len(cut) == 0 {
		return base
	}

	out := make([]Interval, 0, len(base))
	j := 0
	for _, b := range base {
		cur := b
		for j < len(cut) && !cut[j].End.After(cur.Start) {
			j++
		}
		k := j
		for k < len(cut) && cut[k].Start.Before(cur.End) {
			c := cut[k]
			if c.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: c.Start})
			}
			if !c.End.Before(cur.End) {
				cur = Interval{Start: cur.End, End: cur.End}
				break
			}
			cur.Start = c.End
			k++
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// Intersection returns the common portion of two ascending, non-overlapping
// lists using a linear merge.
func Intersection(a, b []Interval) []Interval {
	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if shared, ok := a[i].Intersect(b[j]); ok {
			out = append(out, shared)
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// IntersectAll folds Intersection across every list. An empty input yields nil.
func IntersectAll(lists ...[]Interval) []Interval {
	if len(lists) == 0 {
		return nil
	}
	acc := Merge(lists[0])
	for _, next := range lists[1:] {
		if len(acc) == 0 {
			return nil
		}
		acc = Intersection(acc, Merge(next))
	}
	return acc
}

func sortByStart(in []Interval) {
	slices.SortFunc(in, func(a, b Interval) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
