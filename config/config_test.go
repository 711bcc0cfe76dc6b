package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestDefaultConfigConvertsToEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	engineCfg := cfg.EngineConfig()
	assert.Len(t, engineCfg.WeatherStations, 1)
	assert.Len(t, engineCfg.PVSystems, 1)
	assert.Equal(t, "weather-1", engineCfg.CorrelationWeatherStationID)
}

func TestLoadConfigFromReaderRejectsBadInterval(t *testing.T) {
	body := `{"simulation": {"interval_minutes": 7, "speed_factor": 60}}`
	_, err := LoadConfigFromReader(strings.NewReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_minutes")
}

func TestLoadConfigFromReaderAppliesEnvOverrides(t *testing.T) {
	t.Setenv("TIME_ACCELERATION", "120")
	t.Setenv("HTTP_PORT", "9090")

	body := `{
		"simulation": {"interval_minutes": 15, "speed_factor": 60},
		"weather_stations": [{"id": "weather-1", "config": {}}],
		"correlation": {"weather_station_id": "weather-1"},
		"http": {"listen_addr": ":8080"}
	}`
	cfg, err := LoadConfigFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Simulation.SpeedFactor)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
}

func TestLoadConfigFromReaderRejectsOutOfRangeModbusUnitID(t *testing.T) {
	body := `{
		"simulation": {"interval_minutes": 15, "speed_factor": 60},
		"weather_stations": [{"id": "weather-1", "config": {}}],
		"correlation": {"weather_station_id": "weather-1"},
		"http": {"listen_addr": ":8080"},
		"modbus": {"meters": [{"unit_id": 0, "meter_id": "meter-1"}]}
	}`
	_, err := LoadConfigFromReader(strings.NewReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit_id")
}
