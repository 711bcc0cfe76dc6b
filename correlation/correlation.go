// Package correlation synchronizes weather, PV, meter, load, and price
// generators on a single time axis and derives grid-level metrics from
// their combined readings.
package correlation

import (
	"time"

	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

// WeatherSource is the subset of weather.Generator the engine needs.
type WeatherSource interface {
	GenerateAt(ts time.Time) timeseries.Point[weather.Reading]
}

// PVSource is the subset of pv.Generator the engine needs.
type PVSource interface {
	GenerateAt(ts time.Time) timeseries.Point[pv.Reading]
}

// MeterSource is the subset of meter.Generator the engine needs.
type MeterSource interface {
	GenerateAt(ts time.Time) timeseries.Point[meter.Reading]
}

// LoadSource is the subset of load.Generator the engine needs.
type LoadSource interface {
	GenerateAt(ts time.Time) timeseries.Point[load.Reading]
}

// PriceSource is the subset of price.Generator the engine needs.
type PriceSource interface {
	GenerateAt(ts time.Time) timeseries.Point[price.Reading]
}

// DerivedMetrics are the grid-level quantities computed from one
// snapshot's combined readings.
type DerivedMetrics struct {
	TotalConsumptionKw    float64
	TotalGenerationKw     float64
	NetGridPowerKw        float64
	SelfConsumptionRatio  float64
	CurrentCostEurPerHour float64
}

// Snapshot is a full, timestamp-aligned cross-section of every
// configured feed plus its derived metrics.
type Snapshot struct {
	Timestamp     time.Time
	Weather       *weather.Reading
	PVReadings    []pv.Reading
	MeterReadings []meter.Reading
	ConsumerLoads []load.Reading
	Price         *price.Reading
	Metrics       DerivedMetrics
}

// Engine composes one weather station, any number of PV systems,
// meters, loads, and a price feed, generating them in dependency order
// (weather before PV; everything else is independent) on every tick.
type Engine struct {
	weatherSource WeatherSource
	pvSources     []PVSource
	meterSources  []MeterSource
	loadSources   []LoadSource
	priceSource   PriceSource
	interval      timeseries.Interval
}

// New constructs a correlation Engine. Any source may be nil/empty;
// the corresponding snapshot field is simply omitted.
func New(weatherSource WeatherSource, pvSources []PVSource, meterSources []MeterSource, loadSources []LoadSource, priceSource PriceSource, interval timeseries.Interval) *Engine {
	return &Engine{
		weatherSource: weatherSource,
		pvSources:     pvSources,
		meterSources:  meterSources,
		loadSources:   loadSources,
		priceSource:   priceSource,
		interval:      interval,
	}
}

func (e *Engine) Interval() timeseries.Interval { return e.interval }

// AlignTimestamp floors ts to the engine's interval boundary.
func (e *Engine) AlignTimestamp(ts time.Time) time.Time {
	return timeseries.Align(ts, e.interval)
}

// GenerateSnapshot builds one correlated snapshot at ts, generating
// weather first (PV's dependency), then every other feed, then the
// derived metrics.
func (e *Engine) GenerateSnapshot(ts time.Time) Snapshot {
	aligned := e.AlignTimestamp(ts)

	var weatherReading *weather.Reading
	if e.weatherSource != nil {
		r := e.weatherSource.GenerateAt(aligned).Value
		weatherReading = &r
	}

	pvReadings := make([]pv.Reading, 0, len(e.pvSources))
	for _, src := range e.pvSources {
		pvReadings = append(pvReadings, src.GenerateAt(aligned).Value)
	}

	meterReadings := make([]meter.Reading, 0, len(e.meterSources))
	for _, src := range e.meterSources {
		meterReadings = append(meterReadings, src.GenerateAt(aligned).Value)
	}

	loadReadings := make([]load.Reading, 0, len(e.loadSources))
	for _, src := range e.loadSources {
		loadReadings = append(loadReadings, src.GenerateAt(aligned).Value)
	}

	var priceReading *price.Reading
	if e.priceSource != nil {
		r := e.priceSource.GenerateAt(aligned).Value
		priceReading = &r
	}

	metrics := calculateMetrics(meterReadings, loadReadings, pvReadings, priceReading)

	return Snapshot{
		Timestamp:     aligned,
		Weather:       weatherReading,
		PVReadings:    pvReadings,
		MeterReadings: meterReadings,
		ConsumerLoads: loadReadings,
		Price:         priceReading,
		Metrics:       metrics,
	}
}

// IterateRange walks a range of aligned correlated snapshots.
func (e *Engine) IterateRange(r timeseries.Range) []Snapshot {
	start := e.AlignTimestamp(r.Start)
	end := e.AlignTimestamp(r.End)
	step := e.interval.Duration()

	var snapshots []Snapshot
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		snapshots = append(snapshots, e.GenerateSnapshot(ts))
	}
	return snapshots
}

// GenerateBatch builds count consecutive snapshots starting at start.
func (e *Engine) GenerateBatch(start time.Time, count int) []Snapshot {
	current := e.AlignTimestamp(start)
	step := e.interval.Duration()

	snapshots := make([]Snapshot, 0, count)
	for i := 0; i < count; i++ {
		snapshots = append(snapshots, e.GenerateSnapshot(current))
		current = current.Add(step)
	}
	return snapshots
}

// calculateMetrics derives grid-level totals: consumption is meters
// plus loads, generation is all PV systems, net grid power is the
// difference, self-consumption ratio caps at what generation can
// actually cover, and cost is only charged on net imports — there is
// no feed-in credit for exports.
func calculateMetrics(meterReadings []meter.Reading, loadReadings []load.Reading, pvReadings []pv.Reading, priceReading *price.Reading) DerivedMetrics {
	var meterConsumptionKw float64
	for _, m := range meterReadings {
		totalW := m.Readings.ActivePowerL1W + m.Readings.ActivePowerL2W + m.Readings.ActivePowerL3W
		meterConsumptionKw += totalW / 1000.0
	}

	var loadConsumptionKw float64
	for _, l := range loadReadings {
		loadConsumptionKw += l.DevicePowerKw
	}
	totalConsumptionKw := meterConsumptionKw + loadConsumptionKw

	var totalGenerationKw float64
	for _, p := range pvReadings {
		totalGenerationKw += p.Readings.PowerOutputKw
	}

	netGridPowerKw := totalConsumptionKw - totalGenerationKw

	var selfConsumptionRatio float64
	if totalGenerationKw > 0 {
		selfConsumedKw := totalGenerationKw
		if totalConsumptionKw < selfConsumedKw {
			selfConsumedKw = totalConsumptionKw
		}
		selfConsumptionRatio = selfConsumedKw / totalGenerationKw
	}
	if selfConsumptionRatio < 0 {
		selfConsumptionRatio = 0
	}
	if selfConsumptionRatio > 1 {
		selfConsumptionRatio = 1
	}

	var currentCostEurPerHour float64
	if priceReading != nil && netGridPowerKw > 0 {
		currentCostEurPerHour = netGridPowerKw * priceReading.PriceEurPerKwh
	}

	return DerivedMetrics{
		TotalConsumptionKw:    totalConsumptionKw,
		TotalGenerationKw:     totalGenerationKw,
		NetGridPowerKw:        netGridPowerKw,
		SelfConsumptionRatio:  selfConsumptionRatio,
		CurrentCostEurPerHour: currentCostEurPerHour,
	}
}
