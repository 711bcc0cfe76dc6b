package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/engine"
	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engine.Config{
		Seed:         42,
		Acceleration: 60,
		StartTime:    time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC),
		Interval:     timeseries.FifteenMinutes,
		WeatherStations: []engine.WeatherEntityConfig{
			{EntityID: "weather-1", Config: weather.DefaultConfig()},
		},
		PVSystems: []engine.PVEntityConfig{
			{EntityID: "pv-1", Config: pv.DefaultConfig("pv-1", "weather-1")},
		},
		Meters: []engine.MeterEntityConfig{
			{EntityID: "meter-1", Config: meter.DefaultConfig("meter-1")},
		},
		Loads: []engine.LoadEntityConfig{
			{EntityID: "load-1", Config: load.DefaultConfig("load-1")},
		},
		PriceFeeds: []engine.PriceEntityConfig{
			{EntityID: "price-1", Config: price.DefaultConfig("price-1")},
		},
		CorrelationWeatherStationID: "weather-1",
		CorrelationPVSystemIDs:      []string{"pv-1"},
		CorrelationMeterIDs:         []string{"meter-1"},
		CorrelationLoadIDs:          []string{"load-1"},
		CorrelationPriceFeedID:      "price-1",
	}
	eng, err := engine.New(cfg)
	require.NoError(t, err)
	return eng
}

func newTestServer(t *testing.T) *Server {
	return NewServer(testEngine(t), ":0", nil)
}

func TestHealthHandlerReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMeterCurrentHandlerReturnsReading(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/meters/meter-1/current", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "meter-1", body["meter_id"])
}

func TestUnknownEntityReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/meters/does-not-exist/current", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryRequiresStartAndEnd(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/meters/meter-1/history", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryPaginatesWithHasMore(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/meters/meter-1/history?start=2024-06-12T00:00:00Z&end=2024-06-13T00:00:00Z&limit=5", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Readings []map[string]any `json:"readings"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Readings, 5)
	assert.True(t, body.HasMore)
}

func TestHistoryHonorsRequestedInterval(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/meters/meter-1/history?start=2024-06-12T00:00:00Z&end=2024-06-12T06:00:00Z&interval=1hour", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Readings  []map[string]any `json:"readings"`
		HasMore   bool             `json:"has_more"`
		StartTime string           `json:"start_time"`
		EndTime   string           `json:"end_time"`
		Interval  string           `json:"interval"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1hour", body.Interval)
	assert.Equal(t, "2024-06-12T00:00:00Z", body.StartTime)
	assert.Equal(t, "2024-06-12T06:00:00Z", body.EndTime)
	assert.False(t, body.HasMore)
	// A six-hour range sampled hourly yields seven inclusive points
	// (00:00 through 06:00).
	assert.Len(t, body.Readings, 7)
}

func TestPriceForecastHonorsRequestedInterval(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/prices/price-1/forecast?hours=6&interval=1hour", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Interval string           `json:"interval"`
		Prices   []map[string]any `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1hour", body.Interval)
	assert.Len(t, body.Prices, 7)
}

func TestPriceForecastRejectsOutOfRangeHours(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/prices/price-1/forecast?hours=9999", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulationLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/simulation/start", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/simulation/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/simulation/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
