package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
)

func newGen(seed uint64, entity string, cfg Config) *Generator {
	return New(entity, rng.New(seed), timeseries.FifteenMinutes, cfg)
}

func TestWeatherDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	g1 := newGen(12345, "weather-1", cfg)
	g2 := newGen(12345, "weather-1", cfg)

	ts := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	a := g1.GenerateAt(ts).Value
	b := g2.GenerateAt(ts).Value

	assert.Equal(t, a, b)
}

func TestWeatherNightGHIIsZero(t *testing.T) {
	cfg := DefaultConfig()
	g := newGen(67890, "weather-1", cfg)

	ts := time.Date(2024, 12, 21, 2, 0, 0, 0, time.UTC)
	reading := g.GenerateAt(ts).Value

	assert.Equal(t, 0.0, reading.Conditions.GHIWm2)
	assert.Equal(t, 0.0, reading.Conditions.DNIWm2)
	assert.Equal(t, 0.0, reading.Conditions.DHIWm2)
}

func TestWeatherDaytimeEquatorialHighGHI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Latitude = 0
	cfg.Longitude = 0
	cfg.BaseCloudCoverPct = 5
	cfg.CloudVariancePct = 0
	cfg.MaxClearSkyGHIWm2 = 1100

	g := newGen(34567, "weather-eq", cfg)
	ts := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) // equinox, equatorial noon
	reading := g.GenerateAt(ts).Value

	assert.Greater(t, reading.Conditions.GHIWm2, 700.0)
}

func TestWeatherFieldsWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	g := newGen(1, "weather-1", cfg)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r, _ := timeseries.NewRange(start, end)

	for _, p := range g.IterateRange(r) {
		c := p.Value.Conditions
		assert.GreaterOrEqual(t, c.CloudCoverPct, 0.0)
		assert.LessOrEqual(t, c.CloudCoverPct, 100.0)
		assert.GreaterOrEqual(t, c.HumidityPct, 20.0)
		assert.LessOrEqual(t, c.HumidityPct, 95.0)
		assert.GreaterOrEqual(t, c.WindDirectionDeg, 0.0)
		assert.Less(t, c.WindDirectionDeg, 360.0)
		assert.GreaterOrEqual(t, c.GHIWm2, 0.0)
	}
}
