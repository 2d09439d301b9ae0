// Package interval provides half-open time interval arithmetic used by the timeline engine.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
// Callers are expected to drop intervals with End before Start before handing them to this package.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New creates an interval from start to end
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Duration returns End - Start
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Hours returns the interval length in fractional hours
func (i Interval) Hours() float64 {
	return i.Duration().Hours()
}

// IsEmpty reports whether the interval covers no time
func (i Interval) IsEmpty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals ([9,10) and [10,11)) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether other lies entirely inside i
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Clip returns the part of i that lies inside window.
// The second return value is false when the two do not overlap.
func (i Interval) Clip(window Interval) (Interval, bool) {
	if !i.Overlaps(window) {
		return Interval{}, false
	}
	clipped := i
	if clipped.Start.Before(window.Start) {
		clipped.Start = window.Start
	}
	if clipped.End.After(window.End) {
		clipped.End = window.End
	}
	return clipped, true
}

// SortByStart sorts intervals ascending by start, then by end.
// The sort is stable so equal intervals keep their input order.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(a, b int) bool {
		if intervals[a].Start.Equal(intervals[b].Start) {
			return intervals[a].End.Before(intervals[b].End)
		}
		return intervals[a].Start.Before(intervals[b].Start)
	})
}

// ClipAll clips every interval to window, dropping the ones outside it, and returns them sorted
func ClipAll(intervals []Interval, window Interval) []Interval {
	clipped := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if c, ok := iv.Clip(window); ok {
			clipped = append(clipped, c)
		}
	}
	SortByStart(clipped)
	return clipped
}

// Merge returns the union of intervals as a sorted list of disjoint intervals.
// Touching intervals are joined. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	SortByStart(sorted)

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Gaps returns the free intervals inside window that are not covered by busy, in order
func Gaps(window Interval, busy []Interval) []Interval {
	var gaps []Interval
	cursor := window.Start

	for _, b := range Merge(ClipAll(busy, window)) {
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if window.End.After(cursor) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}

// TotalDuration sums the durations of intervals without merging them
func TotalDuration(intervals []Interval) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}
