// Package pv simulates photovoltaic system power output, driven by a
// weather generator's irradiance and temperature.
package pv

import (
	"math"
	"time"

	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

// stcIrradianceWm2 is the Standard Test Conditions irradiance used to
// normalise module output.
const stcIrradianceWm2 = 1000.0

// Config describes one PV installation.
type Config struct {
	SystemID                string  `json:"system_id"`
	WeatherStationID        string  `json:"weather_station_id"`
	NominalCapacityKwp      float64 `json:"nominal_capacity_kwp"`
	SystemLossesPct         float64 `json:"system_losses_pct"`
	TemperatureCoeffPctPerC float64 `json:"temperature_coeff_pct_per_c"`
	ReferenceTemperatureC   float64 `json:"reference_temperature_c"`
	NoctC                   float64 `json:"noct_c"`
}

// DefaultConfig returns the reference installation defaults.
func DefaultConfig(systemID, weatherStationID string) Config {
	return Config{
		SystemID:                systemID,
		WeatherStationID:        weatherStationID,
		NominalCapacityKwp:      10.0,
		SystemLossesPct:         15.0,
		TemperatureCoeffPctPerC: -0.4,
		ReferenceTemperatureC:   25.0,
		NoctC:                   45.0,
	}
}

// Readings carries the per-timestamp PV measurements.
type Readings struct {
	PowerOutputKw      float64
	DailyEnergyKwh     float64
	IrradianceWm2      float64
	ModuleTemperatureC float64
	EfficiencyPct      float64
}

// Reading is a full PV observation.
type Reading struct {
	Timestamp time.Time
	SystemID  string
	Readings  Readings
}

// WeatherSource is the non-owning handle PV holds on its weather station
// (see spec §9): PV never owns or back-references the weather generator;
// it holds the interface value passed in at construction and calls it
// on every reading.
type WeatherSource interface {
	GenerateAt(ts time.Time) timeseries.Point[weather.Reading]
}

// Generator produces deterministic PV readings for one system.
type Generator struct {
	entityID string
	interval timeseries.Interval
	config   Config
	stationW WeatherSource
}

// New constructs a PV Generator bound to a weather source resolved by the
// caller (the engine facade), not owned by the PV generator itself.
func New(entityID string, interval timeseries.Interval, config Config, stationWeather WeatherSource) *Generator {
	return &Generator{entityID: entityID, interval: interval, config: config, stationW: stationWeather}
}

func (g *Generator) EntityID() string              { return g.entityID }
func (g *Generator) Interval() timeseries.Interval { return g.interval }
func (g *Generator) Config() Config                { return g.config }

// GenerateAt returns the deterministic PV reading at ts.
func (g *Generator) GenerateAt(ts time.Time) timeseries.Point[Reading] {
	return timeseries.GenerateAt(ts, g.interval, g.generateValue)
}

// IterateRange walks a range of aligned PV readings.
func (g *Generator) IterateRange(r timeseries.Range) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, g.interval, g.generateValue)
}

// IterateRangeAt walks r at an explicit interval, overriding the
// generator's own configured sampling interval.
func (g *Generator) IterateRangeAt(r timeseries.Range, interval timeseries.Interval) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, interval, g.generateValue)
}

func (g *Generator) moduleTemperature(ambientTempC, irradianceWm2 float64) float64 {
	if irradianceWm2 <= 0 {
		return ambientTempC
	}
	noctRise := (g.config.NoctC - 20.0) * (irradianceWm2 / 800.0)
	return ambientTempC + noctRise
}

func (g *Generator) temperatureDerating(moduleTempC float64) float64 {
	diff := moduleTempC - g.config.ReferenceTemperatureC
	derating := 1.0 + (g.config.TemperatureCoeffPctPerC/100.0)*diff
	return math.Max(0.0, math.Min(1.2, derating))
}

func (g *Generator) powerOutputKw(irradianceWm2, moduleTempC float64) float64 {
	if irradianceWm2 <= 0 {
		return 0.0
	}
	irradianceFactor := irradianceWm2 / stcIrradianceWm2
	tempFactor := g.temperatureDerating(moduleTempC)
	lossFactor := 1.0 - g.config.SystemLossesPct/100.0

	powerKw := g.config.NominalCapacityKwp * irradianceFactor * tempFactor * lossFactor
	return math.Min(powerKw, g.config.NominalCapacityKwp)
}

func (g *Generator) efficiencyPct(powerOutputKw, irradianceWm2 float64) float64 {
	if irradianceWm2 <= 0 || powerOutputKw <= 0 {
		return 0.0
	}
	theoreticalMax := g.config.NominalCapacityKwp * (irradianceWm2 / stcIrradianceWm2)
	if theoreticalMax <= 0 {
		return 0.0
	}
	return math.Min(100.0, (powerOutputKw/theoreticalMax)*100.0)
}

// dailyEnergyKwh computes the cumulative energy generated since UTC
// midnight up to and including ts, by integrating the power curve over
// every interval step in between. This is the stateless reformulation
// preferred by the design notes: rather than carrying a mutable
// accumulator (the reference implementation's one piece of per-generator
// state), daily energy is recomputed from scratch on every call. It costs
// O(steps-since-midnight) per call instead of O(1), trading CPU for the
// removal of the only lock in the hot path; callers needing O(1) daily
// energy under load should add a (entity_id, utc_date) keyed cache in
// front of this function, as the design notes suggest.
func (g *Generator) dailyEnergyKwh(ts time.Time) float64 {
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	step := g.interval.Duration()
	intervalHours := g.interval.Duration().Hours()

	var total float64
	for t := dayStart; !t.After(ts); t = t.Add(step) {
		weatherReading := g.stationW.GenerateAt(t).Value
		moduleTemp := g.moduleTemperature(weatherReading.Conditions.TemperatureC, weatherReading.Conditions.GHIWm2)
		power := g.powerOutputKw(weatherReading.Conditions.GHIWm2, moduleTemp)
		total += power * intervalHours
	}
	return total
}

func (g *Generator) generateValue(ts time.Time) Reading {
	weatherReading := g.stationW.GenerateAt(ts).Value

	irradiance := weatherReading.Conditions.GHIWm2
	ambientTemp := weatherReading.Conditions.TemperatureC

	moduleTemp := g.moduleTemperature(ambientTemp, irradiance)
	power := g.powerOutputKw(irradiance, moduleTemp)
	dailyEnergy := g.dailyEnergyKwh(ts)
	efficiency := g.efficiencyPct(power, irradiance)

	return Reading{
		Timestamp: ts,
		SystemID:  g.config.SystemID,
		Readings: Readings{
			PowerOutputKw:      power,
			DailyEnergyKwh:     dailyEnergy,
			IrradianceWm2:      irradiance,
			ModuleTemperatureC: moduleTemp,
			EfficiencyPct:      efficiency,
		},
	}
}
