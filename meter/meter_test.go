package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
)

func newMeterGen(seed uint64) *Generator {
	return New("meter-1", rng.New(seed), timeseries.FifteenMinutes, DefaultConfig("meter-1"))
}

func TestMeterDeterministic(t *testing.T) {
	g1 := newMeterGen(11111)
	g2 := newMeterGen(11111)

	ts := time.Date(2024, 6, 12, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, g1.GenerateAt(ts).Value, g2.GenerateAt(ts).Value)
}

func TestMeterPhasesBalanceAroundTotal(t *testing.T) {
	g := newMeterGen(22222)
	ts := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	r := g.GenerateAt(ts).Value.Readings

	total := r.ActivePowerL1W + r.ActivePowerL2W + r.ActivePowerL3W
	baseShare := total / 3.0
	expectedBaseShareSum := baseShare * 3
	assert.InDelta(t, expectedBaseShareSum, total, 1e-6)

	// Each phase stays within its imbalance band around the equal share;
	// L3 carries the negated sum of L1's and L2's imbalances, so its band
	// is twice as wide.
	maxDev := baseShare * 2 * g.Config().PhaseImbalanceFactor
	assert.InDelta(t, baseShare, r.ActivePowerL1W, maxDev)
	assert.InDelta(t, baseShare, r.ActivePowerL2W, maxDev)
	assert.InDelta(t, baseShare, r.ActivePowerL3W, maxDev)
}

func TestMeterPowerFactorWithinRange(t *testing.T) {
	g := newMeterGen(33333)
	cfg := g.Config()

	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	r, err := timeseries.NewRange(start, end)
	require.NoError(t, err)

	for _, pt := range g.IterateRange(r) {
		pf := pt.Value.Readings.PowerFactor
		assert.GreaterOrEqual(t, pf, cfg.PowerFactorMin)
		assert.LessOrEqual(t, pf, cfg.PowerFactorMax)
	}
}

func TestMeterEnergyTrackingMonotonic(t *testing.T) {
	g := newMeterGen(44444)
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	r, err := timeseries.NewRange(start, end)
	require.NoError(t, err)

	points := g.GenerateRangeWithEnergyTracking(r)
	require.NotEmpty(t, points)

	prev := points[0].Value.Readings.TotalEnergyKwh
	for _, pt := range points[1:] {
		e := pt.Value.Readings.TotalEnergyKwh
		assert.GreaterOrEqual(t, e, prev)
		prev = e
	}
}

func TestMeterNightLoadLowerThanPeak(t *testing.T) {
	g := newMeterGen(55555)
	night := g.GenerateAt(time.Date(2024, 6, 12, 3, 0, 0, 0, time.UTC)).Value
	peak := g.GenerateAt(time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)).Value

	nightTotal := night.Readings.ActivePowerL1W + night.Readings.ActivePowerL2W + night.Readings.ActivePowerL3W
	peakTotal := peak.Readings.ActivePowerL1W + peak.Readings.ActivePowerL2W + peak.Readings.ActivePowerL3W
	assert.Less(t, nightTotal, peakTotal)
}
