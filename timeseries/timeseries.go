// Package timeseries provides the alignment and lazy-iteration machinery
// shared by every generator in the kernel: given an interval and a pure
// value function, it aligns timestamps to interval boundaries and walks
// ranges without materialising them unless asked to.
package timeseries

import (
	"fmt"
	"iter"
	"time"
)

// Interval is one of the two supported sampling granularities.
type Interval int

const (
	FifteenMinutes Interval = 15
	OneHour        Interval = 60
)

// Minutes returns the interval length in minutes.
func (iv Interval) Minutes() int { return int(iv) }

// Duration returns the interval length as a time.Duration.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv) * time.Minute
}

// Valid reports whether iv is one of the supported intervals.
func (iv Interval) Valid() bool {
	return iv == FifteenMinutes || iv == OneHour
}

// String renders iv in the wire format clients request and expect back:
// "15min" or "1hour".
func (iv Interval) String() string {
	switch iv {
	case FifteenMinutes:
		return "15min"
	case OneHour:
		return "1hour"
	default:
		return fmt.Sprintf("%dmin", int(iv))
	}
}

// ParseInterval parses the wire form ("15min" or "1hour") clients send
// as the interval query parameter back into an Interval.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "15min":
		return FifteenMinutes, nil
	case "1hour":
		return OneHour, nil
	default:
		return 0, fmt.Errorf("interval must be %q or %q", FifteenMinutes, OneHour)
	}
}

// Align floors t to the greatest multiple of the interval at or before
// t, in UTC. Alignment is idempotent: Align(Align(t)) == Align(t).
func Align(t time.Time, iv Interval) time.Time {
	t = t.UTC()
	intervalSeconds := int64(iv.Minutes() * 60)
	tsSeconds := t.Unix()
	alignedSeconds := (tsSeconds / intervalSeconds) * intervalSeconds
	return time.Unix(alignedSeconds, 0).UTC()
}

// Point is a single (timestamp, value) pair produced by a generator.
type Point[T any] struct {
	Timestamp time.Time
	Value     T
}

// TimestampMs returns the point's timestamp as Unix milliseconds.
func (p Point[T]) TimestampMs() int64 {
	return p.Timestamp.UnixMilli()
}

// Range is a closed time range: [Start, End], both inclusive once
// aligned. Start must be strictly before End.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange validates and constructs a Range.
func NewRange(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, fmt.Errorf("start time must be before end time: start=%s end=%s", start, end)
	}
	return Range{Start: start, End: end}, nil
}

// CountIntervals returns how many interval-sized steps fit in the range.
func (r Range) CountIntervals(iv Interval) int {
	delta := r.End.Sub(r.Start)
	totalMinutes := delta.Minutes()
	return int(totalMinutes) / iv.Minutes()
}

// ValueFunc computes a generator's value at an already-aligned timestamp.
// Implementations must be pure: the same timestamp always yields the
// same value, with no hidden state carried between calls.
type ValueFunc[T any] func(ts time.Time) T

// GenerateAt aligns ts to iv and evaluates fn at the aligned timestamp.
func GenerateAt[T any](ts time.Time, iv Interval, fn ValueFunc[T]) Point[T] {
	aligned := Align(ts, iv)
	return Point[T]{Timestamp: aligned, Value: fn(aligned)}
}

// IterateRange lazily walks aligned timestamps across r, evaluating fn at
// each step. The returned sequence yields nothing until ranged over, and
// can be interrupted by the consumer (range-break) without having
// computed the remaining points — this is what keeps month- and
// year-scale queries from materialising in full by default.
func IterateRange[T any](r Range, iv Interval, fn ValueFunc[T]) iter.Seq[Point[T]] {
	return func(yield func(Point[T]) bool) {
		current := Align(r.Start, iv)
		end := Align(r.End, iv)
		step := iv.Duration()

		for !current.After(end) {
			if !yield(Point[T]{Timestamp: current, Value: fn(current)}) {
				return
			}
			current = current.Add(step)
		}
	}
}

// GenerateRange eagerly materialises IterateRange into a slice. Prefer
// IterateRange for large ranges (month/year-scale queries).
func GenerateRange[T any](r Range, iv Interval, fn ValueFunc[T]) []Point[T] {
	var out []Point[T]
	for p := range IterateRange(r, iv, fn) {
		out = append(out, p)
	}
	return out
}

// GenerateBatch produces count consecutive aligned points starting at
// start.
func GenerateBatch[T any](start time.Time, count int, iv Interval, fn ValueFunc[T]) []Point[T] {
	current := Align(start, iv)
	step := iv.Duration()
	points := make([]Point[T], 0, count)
	for i := 0; i < count; i++ {
		points = append(points, Point[T]{Timestamp: current, Value: fn(current)})
		current = current.Add(step)
	}
	return points
}

// IsWeekend reports whether t (interpreted in UTC) falls on a Saturday
// or Sunday. Several generators (load curves, consumer-load schedules)
// switch behaviour on weekends.
func IsWeekend(t time.Time) bool {
	d := t.UTC().Weekday()
	return d == time.Saturday || d == time.Sunday
}

// InterpolateHourly linearly interpolates a 24-element hour-indexed
// curve at the given hour and minute-of-hour fraction. hour must be in
// [0,23]; minute in [0,59]. Wraps at the 24→0 boundary.
func InterpolateHourly(curve [24]float64, hour, minute int) float64 {
	next := (hour + 1) % 24
	frac := float64(minute) / 60.0
	return curve[hour]*(1-frac) + curve[next]*frac
}
