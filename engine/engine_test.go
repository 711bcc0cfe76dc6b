package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

func testConfig(seed uint64) Config {
	return Config{
		Seed:         seed,
		Acceleration: 1,
		StartTime:    time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		Interval:     timeseries.FifteenMinutes,
		WeatherStations: []WeatherEntityConfig{
			{EntityID: "weather-1", Config: weather.DefaultConfig()},
		},
		PVSystems: []PVEntityConfig{
			{EntityID: "pv-1", Config: pv.DefaultConfig("pv-1", "weather-1")},
		},
		Meters: []MeterEntityConfig{
			{EntityID: "meter-1", Config: meter.DefaultConfig("meter-1")},
		},
		Loads: []LoadEntityConfig{
			{EntityID: "oven-1", Config: load.DefaultConfig("oven-1")},
		},
		PriceFeeds: []PriceEntityConfig{
			{EntityID: "price-1", Config: price.DefaultConfig("price-1")},
		},
		CorrelationWeatherStationID: "weather-1",
		CorrelationPVSystemIDs:      []string{"pv-1"},
		CorrelationMeterIDs:         []string{"meter-1"},
		CorrelationLoadIDs:          []string{"oven-1"},
		CorrelationPriceFeedID:      "price-1",
	}
}

func TestNewRejectsUnknownWeatherStation(t *testing.T) {
	cfg := testConfig(1)
	cfg.PVSystems[0].Config.WeatherStationID = "does-not-exist"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestGenerateAtDispatchesByEntity(t *testing.T) {
	e, err := New(testConfig(2))
	require.NoError(t, err)

	ts := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	_, ok := e.GenerateAt("meter-1", ts)
	assert.True(t, ok)

	_, ok = e.GenerateAt("unknown-entity", ts)
	assert.False(t, ok)
}

func TestResetPreservesEntityIdentity(t *testing.T) {
	e, err := New(testConfig(3))
	require.NoError(t, err)

	before := e.Snapshot()
	newSeed := uint64(99)
	require.NoError(t, e.Reset(&newSeed))
	after := e.Snapshot()

	assert.ElementsMatch(t, before.EntityIDs, after.EntityIDs)
	assert.Equal(t, newSeed, after.Seed)
	assert.Equal(t, Initialized, after.State)
}

func TestLifecycleTransitions(t *testing.T) {
	e, err := New(testConfig(4))
	require.NoError(t, err)

	assert.Equal(t, Initialized, e.Snapshot().State)
	e.Start()
	assert.Equal(t, Running, e.Snapshot().State)
	e.Pause()
	assert.Equal(t, Paused, e.Snapshot().State)
	e.Resume()
	assert.Equal(t, Running, e.Snapshot().State)
	e.Stop()
	assert.Equal(t, Stopped, e.Snapshot().State)
}

func TestCurrentSnapshotComposesAllFeeds(t *testing.T) {
	e, err := New(testConfig(5))
	require.NoError(t, err)
	e.Start()

	snap := e.CurrentSnapshot()
	assert.NotNil(t, snap.Weather)
	assert.Len(t, snap.PVReadings, 1)
	assert.Len(t, snap.MeterReadings, 1)
}
