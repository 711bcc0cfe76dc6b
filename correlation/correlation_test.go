package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

func newEngine(seed uint64) *Engine {
	source := rng.New(seed)
	w := weather.New("weather-1", source, timeseries.FifteenMinutes, weather.DefaultConfig())
	p := pv.New("pv-1", timeseries.FifteenMinutes, pv.DefaultConfig("pv-1", "weather-1"), w)
	m := meter.New("meter-1", source, timeseries.FifteenMinutes, meter.DefaultConfig("meter-1"))
	l := load.New("oven-1", source, timeseries.FifteenMinutes, load.DefaultConfig("oven-1"))
	pr := price.New("price-1", source, timeseries.FifteenMinutes, price.DefaultConfig("price-1"))

	return New(w, []PVSource{p}, []MeterSource{m}, []LoadSource{l}, pr, timeseries.FifteenMinutes)
}

func TestSnapshotIncludesEveryFeed(t *testing.T) {
	e := newEngine(5555)
	ts := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	snap := e.GenerateSnapshot(ts)

	require.NotNil(t, snap.Weather)
	require.Len(t, snap.PVReadings, 1)
	require.Len(t, snap.MeterReadings, 1)
	require.Len(t, snap.ConsumerLoads, 1)
	require.NotNil(t, snap.Price)
}

func TestNetGridPowerIsConsumptionMinusGeneration(t *testing.T) {
	e := newEngine(5556)
	ts := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	snap := e.GenerateSnapshot(ts)

	expected := snap.Metrics.TotalConsumptionKw - snap.Metrics.TotalGenerationKw
	assert.InDelta(t, expected, snap.Metrics.NetGridPowerKw, 1e-9)
}

func TestSelfConsumptionRatioWithinBounds(t *testing.T) {
	e := newEngine(5557)
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	r, err := timeseries.NewRange(start, end)
	require.NoError(t, err)

	for _, snap := range e.IterateRange(r) {
		assert.GreaterOrEqual(t, snap.Metrics.SelfConsumptionRatio, 0.0)
		assert.LessOrEqual(t, snap.Metrics.SelfConsumptionRatio, 1.0)
	}
}

func TestNoCostWhenExporting(t *testing.T) {
	e := newEngine(5558)
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	snap := e.GenerateSnapshot(noon)

	if snap.Metrics.NetGridPowerKw <= 0 {
		assert.Equal(t, 0.0, snap.Metrics.CurrentCostEurPerHour)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	e1 := newEngine(5559)
	e2 := newEngine(5559)

	ts := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, e1.GenerateSnapshot(ts), e2.GenerateSnapshot(ts))
}
