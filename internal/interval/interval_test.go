package interval

import (
	"errors"
	"testing"
	"time"
)

var eat = time.FixedZone("EAT", 3*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 11, hour, minute, 0, 0, eat)
}

func span(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func TestNew_RejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	if _, err := New(at(10, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for zero length, got %v", err)
	}
	if _, err := New(at(11, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for reversed bounds, got %v", err)
	}
	iv, err := New(at(10, 0), at(10, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Duration() != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", iv.Duration())
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{name: "touching", a: span(9, 0, 10, 0), b: span(10, 0, 11, 0), want: false},
		{name: "nested", a: span(9, 0, 12, 0), b: span(10, 0, 11, 0), want: true},
		{name: "partial", a: span(9, 0, 10, 30), b: span(10, 0, 11, 0), want: true},
		{name: "disjoint", a: span(9, 0, 9, 30), b: span(10, 0, 11, 0), want: false},
		{name: "zero length inside", a: span(10, 15, 10, 15), b: span(10, 0, 11, 0), want: false},
		{name: "identical", a: span(10, 0, 11, 0), b: span(10, 0, 11, 0), want: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps(a,b) = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("Overlaps(b,a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverlaps_IgnoresLocation(t *testing.T) {
	t.Parallel()

	a := span(10, 0, 11, 0)
	b := a.UTC()
	if !a.Overlaps(b) {
		t.Fatalf("expected the same instants in different zones to overlap")
	}
	if !a.Equal(b) {
		t.Fatalf("expected Equal to ignore location")
	}
}

func TestMerge_CollapsesAdjacentAndOverlapping(t *testing.T) {
	t.Parallel()

	got := Merge([]Interval{
		span(13, 0, 15, 0),
		span(9, 0, 10, 0),
		span(10, 0, 11, 0),
		span(14, 0, 16, 0),
		span(12, 0, 12, 0),
	})
	want := []Interval{span(9, 0, 11, 0), span(13, 0, 16, 0)}
	assertIntervals(t, got, want)

	for i := 1; i < len(got); i++ {
		if !got[i].Start.After(got[i-1].End) {
			t.Fatalf("intervals %d and %d touch or overlap", i-1, i)
		}
	}
}

func TestSubtract_SplitsAroundCuts(t *testing.T) {
	t.Parallel()

	base := []Interval{span(9, 0, 17, 0)}
	cut := []Interval{span(12, 0, 13, 0), span(8, 0, 9, 30), span(16, 30, 18, 0)}

	got := Subtract(base, cut)
	want := []Interval{span(9, 30, 12, 0), span(13, 0, 16, 30)}
	assertIntervals(t, got, want)
}

func TestSubtract_CutSpanningSeveralBases(t *testing.T) {
	t.Parallel()

	base := []Interval{span(9, 0, 10, 0), span(11, 0, 12, 0), span(13, 0, 14, 0)}
	cut := []Interval{span(9, 30, 13, 30)}

	got := Subtract(base, cut)
	want := []Interval{span(9, 0, 9, 30), span(13, 30, 14, 0)}
	assertIntervals(t, got, want)
}

func TestSubtract_FullCoverRemovesEverything(t *testing.T) {
	t.Parallel()

	if got := Subtract([]Interval{span(9, 0, 10, 0)}, []Interval{span(8, 0, 11, 0)}); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestIntersectAll_LinearMerge(t *testing.T) {
	t.Parallel()

	a := []Interval{span(9, 0, 12, 0), span(13, 0, 17, 0)}
	b := []Interval{span(10, 0, 14, 0)}
	c := []Interval{span(8, 0, 11, 0), span(13, 30, 18, 0)}

	got := IntersectAll(a, b, c)
	want := []Interval{span(10, 0, 11, 0), span(13, 30, 14, 0)}
	assertIntervals(t, got, want)

	if got := IntersectAll(a, nil); len(got) != 0 {
		t.Fatalf("expected nil when one list is empty, got %v", got)
	}
	if got := IntersectAll(); got != nil {
		t.Fatalf("expected nil for no lists, got %v", got)
	}
}

func TestDay_UsesLocationCalendar(t *testing.T) {
	t.Parallel()

	// 22:30 UTC on the 10th is 01:30 EAT on the 11th.
	instant := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	day := Day(instant, eat)
	if !day.Start.Equal(at(0, 0)) {
		t.Fatalf("expected day start %s, got %s", at(0, 0), day.Start)
	}
	if day.Duration() != 24*time.Hour {
		t.Fatalf("expected 24h day, got %s", day.Duration())
	}
}

func assertIntervals(t *testing.T, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("interval %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
