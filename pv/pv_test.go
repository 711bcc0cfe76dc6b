package pv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

func newStationAndPV(seed uint64) (*weather.Generator, *Generator) {
	w := weather.New("weather-1", rng.New(seed), timeseries.FifteenMinutes, weather.DefaultConfig())
	p := New("pv-1", timeseries.FifteenMinutes, DefaultConfig("pv-1", "weather-1"), w)
	return w, p
}

func TestPVNightPowerIsZero(t *testing.T) {
	_, p := newStationAndPV(67890)
	ts := time.Date(2024, 12, 21, 2, 0, 0, 0, time.UTC)
	reading := p.GenerateAt(ts).Value
	assert.Equal(t, 0.0, reading.Readings.PowerOutputKw)
}

func TestPVPowerWithinCapacity(t *testing.T) {
	_, p := newStationAndPV(34567)
	start := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 22, 0, 0, 0, 0, time.UTC)
	r, err := timeseries.NewRange(start, end)
	require.NoError(t, err)

	for _, pt := range p.IterateRange(r) {
		assert.GreaterOrEqual(t, pt.Value.Readings.PowerOutputKw, 0.0)
		assert.LessOrEqual(t, pt.Value.Readings.PowerOutputKw, p.Config().NominalCapacityKwp)
	}
}

func TestPVDailyEnergyMonotoneWithinDayAndResetsAtMidnight(t *testing.T) {
	_, p := newStationAndPV(34567)
	day := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	var prev float64
	for h := 0; h < 24; h++ {
		ts := day.Add(time.Duration(h) * time.Hour)
		e := p.GenerateAt(ts).Value.Readings.DailyEnergyKwh
		assert.GreaterOrEqual(t, e, prev)
		prev = e
	}

	nextDayStart := day.Add(24 * time.Hour)
	eNextDay := p.GenerateAt(nextDayStart).Value.Readings.DailyEnergyKwh
	assert.LessOrEqual(t, eNextDay, prev)
}

func TestPVDeterministic(t *testing.T) {
	_, p1 := newStationAndPV(34567)
	_, p2 := newStationAndPV(34567)

	ts := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, p1.GenerateAt(ts).Value, p2.GenerateAt(ts).Value)
}
