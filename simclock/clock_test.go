package simclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsOutOfRangeAcceleration(t *testing.T) {
	_, err := New(0, time.Time{})
	assert.Error(t, err)

	_, err = New(1001, time.Time{})
	assert.Error(t, err)
}

func TestStoppedClockReturnsStartTime(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1, start)
	require.NoError(t, err)

	assert.Equal(t, Stopped, c.State())
	assert.Equal(t, start, c.Now())
}

func TestStartAdvancesSimTimeWithAcceleration(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(100, start)
	require.NoError(t, err)

	c.Start()
	time.Sleep(20 * time.Millisecond)
	now := c.Now()

	assert.True(t, now.After(start))
}

func TestPauseFreezesTime(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1000, start)
	require.NoError(t, err)

	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Pause()
	frozen := c.Now()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, frozen, c.Now())
	assert.Equal(t, Paused, c.State())
}

func TestAdvanceToRejectsPast(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1, start)
	require.NoError(t, err)

	_, err = c.AdvanceTo(start.Add(-time.Second))
	assert.Error(t, err)
}

func TestAdvanceToMovesForward(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1, start)
	require.NoError(t, err)

	target := start.Add(24 * time.Hour)
	got, err := c.AdvanceTo(target)
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.Equal(t, target, c.Now())
}

func TestResetRestoresOriginalStart(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1, start)
	require.NoError(t, err)

	c.Start()
	c.Advance(time.Hour)
	c.Reset(time.Time{})

	assert.Equal(t, Stopped, c.State())
	assert.Equal(t, start, c.Now())
}

func TestSetTimeWhileRunningReanchors(t *testing.T) {
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	c, err := New(1, start)
	require.NoError(t, err)

	c.Start()
	jump := start.Add(48 * time.Hour)
	c.SetTime(jump)

	assert.WithinDuration(t, jump, c.Now(), time.Second)
}
