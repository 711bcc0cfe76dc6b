package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignFloorsToBoundary(t *testing.T) {
	ts := time.Date(2024, 6, 12, 10, 37, 12, 0, time.UTC)
	aligned := Align(ts, FifteenMinutes)
	assert.Equal(t, time.Date(2024, 6, 12, 10, 30, 0, 0, time.UTC), aligned)
}

func TestAlignIsIdempotent(t *testing.T) {
	ts := time.Date(2024, 6, 12, 10, 37, 12, 0, time.UTC)
	once := Align(ts, FifteenMinutes)
	twice := Align(once, FifteenMinutes)
	assert.Equal(t, once, twice)
}

func TestAlignHourly(t *testing.T) {
	ts := time.Date(2024, 6, 12, 10, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC), Align(ts, OneHour))
}

func TestGenerateAtAlignsBeforeCalling(t *testing.T) {
	ts := time.Date(2024, 6, 12, 10, 37, 12, 0, time.UTC)
	p := GenerateAt(ts, FifteenMinutes, func(aligned time.Time) int {
		assert.Equal(t, time.Date(2024, 6, 12, 10, 30, 0, 0, time.UTC), aligned)
		return 1
	})
	assert.Equal(t, 1, p.Value)
}

func TestIterateRangeCoversWholeRangeInclusive(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC)
	r, err := NewRange(start, end)
	require.NoError(t, err)

	var count int
	for p := range IterateRange(r, FifteenMinutes, func(ts time.Time) time.Time { return ts }) {
		assert.Equal(t, p.Timestamp, p.Value)
		count++
	}
	assert.Equal(t, 5, count) // 00:00, 00:15, 00:30, 00:45, 01:00
}

func TestIterateRangeBreaksEarly(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	r, err := NewRange(start, end)
	require.NoError(t, err)

	var seen int
	for range IterateRange(r, FifteenMinutes, func(ts time.Time) int { return 0 }) {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestNewRangeRejectsInverted(t *testing.T) {
	_, err := NewRange(time.Now(), time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC))) // Saturday
	assert.False(t, IsWeekend(time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC)))
}

func TestInterpolateHourlyMidpoint(t *testing.T) {
	var curve [24]float64
	curve[10] = 0.0
	curve[11] = 1.0
	assert.InDelta(t, 0.5, InterpolateHourly(curve, 10, 30), 1e-9)
}
