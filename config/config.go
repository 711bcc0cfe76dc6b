// Package config loads the JSON configuration file describing the
// simulation's entity roster and network addresses, and converts it
// into the immutable engine.Config the core is constructed from. The
// core itself never parses files or environment variables; all of
// that lives here, at the outer edge of the process.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/facis/simulation-service/engine"
	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

// SimulationConfig holds the seed, sampling interval, and clock
// parameters the engine is constructed from.
type SimulationConfig struct {
	Seed            uint64    `json:"seed"`
	IntervalMinutes int       `json:"interval_minutes"`
	StartTime       time.Time `json:"start_time"`
	SpeedFactor     int       `json:"speed_factor"`
}

// WeatherStationConfig pairs an entity ID with its weather.Config.
type WeatherStationConfig struct {
	ID     string         `json:"id"`
	Config weather.Config `json:"config"`
}

// PVSystemConfig pairs an entity ID with its pv.Config.
type PVSystemConfig struct {
	ID     string    `json:"id"`
	Config pv.Config `json:"config"`
}

// MeterConfig pairs an entity ID with its meter.Config.
type MeterConfig struct {
	ID     string       `json:"id"`
	Config meter.Config `json:"config"`
}

// ConsumerConfig pairs an entity ID with its load.Config.
type ConsumerConfig struct {
	ID     string      `json:"id"`
	Config load.Config `json:"config"`
}

// PriceFeedConfig pairs an entity ID with its price.Config.
type PriceFeedConfig struct {
	ID     string       `json:"id"`
	Config price.Config `json:"config"`
}

// CorrelationConfig names which already-declared entities feed the
// single default correlation engine.
type CorrelationConfig struct {
	WeatherStationID string   `json:"weather_station_id"`
	PVSystemIDs      []string `json:"pv_system_ids"`
	MeterIDs         []string `json:"meter_ids"`
	LoadIDs          []string `json:"load_ids"`
	PriceFeedID      string   `json:"price_feed_id"`
}

// MQTTConfig addresses the MQTT broker this process publishes to.
type MQTTConfig struct {
	BrokerURL string `json:"broker_url"`
	ClientID  string `json:"client_id"`
	Enabled   bool   `json:"enabled"`
}

// HTTPConfig addresses the REST/WebSocket listener this process exposes.
type HTTPConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// ModbusMeterBinding binds a Modbus unit ID to a meter entity.
type ModbusMeterBinding struct {
	UnitID  byte   `json:"unit_id"`
	MeterID string `json:"meter_id"`
}

// ModbusConfig addresses the Modbus TCP server this process exposes.
type ModbusConfig struct {
	ListenAddr string               `json:"listen_addr"`
	Enabled    bool                 `json:"enabled"`
	Meters     []ModbusMeterBinding `json:"meters"`
}

// Config is the full external configuration surface: the entity
// roster plus the three protocol adapters' network addresses.
type Config struct {
	Simulation  SimulationConfig       `json:"simulation"`
	Weather     []WeatherStationConfig `json:"weather_stations"`
	PVSystems   []PVSystemConfig       `json:"pv_systems"`
	Meters      []MeterConfig          `json:"meters"`
	Consumers   []ConsumerConfig       `json:"consumers"`
	PriceFeeds  []PriceFeedConfig      `json:"price_feeds"`
	Correlation CorrelationConfig      `json:"correlation"`

	MQTT   MQTTConfig   `json:"mqtt"`
	HTTP   HTTPConfig   `json:"http"`
	Modbus ModbusConfig `json:"modbus"`

	// PostgresConnString enables the optional snapshot archiver when
	// non-empty. Disabled by default, since the core itself holds no
	// persisted state.
	PostgresConnString string `json:"postgres_conn_string"`

	// LogLevel controls the verbosity of the process logger. Not read
	// by the core; main uses it only to decide what to print.
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a single-site reference installation: one
// weather station, one PV system, one meter, one industrial-oven
// consumer, and one price feed, wired into the default correlation
// engine — enough to exercise every external interface out of the box.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Seed:            1,
			IntervalMinutes: int(timeseries.FifteenMinutes),
			SpeedFactor:     60,
		},
		Weather: []WeatherStationConfig{
			{ID: "weather-1", Config: weather.DefaultConfig()},
		},
		PVSystems: []PVSystemConfig{
			{ID: "pv-1", Config: pv.DefaultConfig("pv-1", "weather-1")},
		},
		Meters: []MeterConfig{
			{ID: "meter-1", Config: meter.DefaultConfig("meter-1")},
		},
		Consumers: []ConsumerConfig{
			{ID: "oven-1", Config: load.DefaultConfig("oven-1")},
		},
		PriceFeeds: []PriceFeedConfig{
			{ID: "price-1", Config: price.DefaultConfig("price-1")},
		},
		Correlation: CorrelationConfig{
			WeatherStationID: "weather-1",
			PVSystemIDs:      []string{"pv-1"},
			MeterIDs:         []string{"meter-1"},
			LoadIDs:          []string{"oven-1"},
			PriceFeedID:      "price-1",
		},
		MQTT: MQTTConfig{
			BrokerURL: "tcp://localhost:1883",
			ClientID:  "facis-simulation-service",
			Enabled:   false,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		Modbus: ModbusConfig{
			ListenAddr: ":5020",
			Enabled:    false,
			Meters: []ModbusMeterBinding{
				{UnitID: 1, MeterID: "meter-1"},
			},
		},
		PostgresConnString: "",
		LogLevel:           "info",
	}
}

// LoadConfig reads and validates a JSON configuration file.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", filename, err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader decodes a JSON configuration document, starting
// from DefaultConfig so any field the document omits keeps its default.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode JSON: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets operators override a handful of deployment
// knobs without editing the config file, named after the original
// service's environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SIMULATION_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Simulation.Seed = seed
		}
	}
	if v := os.Getenv("TIME_ACCELERATION"); v != "" {
		if factor, err := strconv.Atoi(v); err == nil {
			c.Simulation.SpeedFactor = factor
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		c.HTTP.ListenAddr = ":" + v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.BrokerURL = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("MODBUS_PORT"); v != "" {
		c.Modbus.ListenAddr = ":" + v
		c.Modbus.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration values the engine cannot itself
// check at construction time (e.g. interval granularity, which the
// engine silently trusts since it is handed a typed Interval, not the
// raw integer from the file).
func (c *Config) Validate() error {
	iv := timeseries.Interval(c.Simulation.IntervalMinutes)
	if !iv.Valid() {
		return fmt.Errorf("simulation.interval_minutes must be 15 or 60, got %d", c.Simulation.IntervalMinutes)
	}
	if c.Simulation.SpeedFactor < 1 || c.Simulation.SpeedFactor > 1000 {
		return fmt.Errorf("simulation.speed_factor must be between 1 and 1000, got %d", c.Simulation.SpeedFactor)
	}
	if len(c.Weather) == 0 {
		return fmt.Errorf("at least one weather station must be configured")
	}
	if c.Correlation.WeatherStationID == "" {
		return fmt.Errorf("correlation.weather_station_id is required")
	}
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("http.listen_addr cannot be empty")
	}
	for _, m := range c.Modbus.Meters {
		if m.UnitID < 1 || m.UnitID > 247 {
			return fmt.Errorf("modbus meter binding for %q: unit_id must be 1-247, got %d", m.MeterID, m.UnitID)
		}
	}
	return nil
}

// EngineConfig converts the loaded configuration into the engine's
// construction parameters.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.Config{
		Seed:         c.Simulation.Seed,
		Acceleration: c.Simulation.SpeedFactor,
		StartTime:    c.Simulation.StartTime,
		Interval:     timeseries.Interval(c.Simulation.IntervalMinutes),

		CorrelationWeatherStationID: c.Correlation.WeatherStationID,
		CorrelationPVSystemIDs:      c.Correlation.PVSystemIDs,
		CorrelationMeterIDs:         c.Correlation.MeterIDs,
		CorrelationLoadIDs:          c.Correlation.LoadIDs,
		CorrelationPriceFeedID:      c.Correlation.PriceFeedID,
	}

	for _, w := range c.Weather {
		cfg.WeatherStations = append(cfg.WeatherStations, engine.WeatherEntityConfig{EntityID: w.ID, Config: w.Config})
	}
	for _, p := range c.PVSystems {
		cfg.PVSystems = append(cfg.PVSystems, engine.PVEntityConfig{EntityID: p.ID, Config: p.Config})
	}
	for _, m := range c.Meters {
		cfg.Meters = append(cfg.Meters, engine.MeterEntityConfig{EntityID: m.ID, Config: m.Config})
	}
	for _, cc := range c.Consumers {
		cfg.Loads = append(cfg.Loads, engine.LoadEntityConfig{EntityID: cc.ID, Config: cc.Config})
	}
	for _, p := range c.PriceFeeds {
		cfg.PriceFeeds = append(cfg.PriceFeeds, engine.PriceEntityConfig{EntityID: p.ID, Config: p.Config})
	}
	return cfg
}
