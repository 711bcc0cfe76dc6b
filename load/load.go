// Package load simulates schedule-driven consumer devices such as
// industrial ovens: operating windows, weekend restriction, duty-cycle
// on/off selection, and power variance while running.
package load

import (
	"time"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
)

// DeviceState is the device's on/off state for a reading.
type DeviceState string

const (
	On  DeviceState = "ON"
	Off DeviceState = "OFF"
)

// DeviceType names the simulated appliance class.
type DeviceType string

const (
	IndustrialOven DeviceType = "industrial_oven"
	HVAC           DeviceType = "hvac"
	Compressor     DeviceType = "compressor"
	Pump           DeviceType = "pump"
	Generic        DeviceType = "generic"
)

// OperatingWindow is an hour-of-day range during which the device may
// run. Windows may wrap past midnight (StartHour > EndHour).
type OperatingWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// ContainsHour reports whether hour falls within the window, handling
// the overnight-wrap case (e.g. 22-06).
func (w OperatingWindow) ContainsHour(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// Config describes one consumer-load device.
type Config struct {
	DeviceID          string            `json:"device_id"`
	DeviceType        DeviceType        `json:"device_type"`
	RatedPowerKw      float64           `json:"rated_power_kw"`
	PowerVariancePct  float64           `json:"power_variance_pct"`
	DutyCyclePct      float64           `json:"duty_cycle_pct"`
	OperatingWindows  []OperatingWindow `json:"operating_windows"`
	OperateOnWeekends bool              `json:"operate_on_weekends"`
}

// DefaultConfig returns the reference industrial-oven defaults.
func DefaultConfig(deviceID string) Config {
	return Config{
		DeviceID:         deviceID,
		DeviceType:       IndustrialOven,
		RatedPowerKw:     3.0,
		PowerVariancePct: 5.0,
		DutyCyclePct:     70.0,
		OperatingWindows: []OperatingWindow{
			{StartHour: 7, EndHour: 9},
			{StartHour: 11, EndHour: 13},
			{StartHour: 15, EndHour: 17},
		},
		OperateOnWeekends: false,
	}
}

// Reading is one device observation.
type Reading struct {
	Timestamp     time.Time
	DeviceID      string
	DeviceType    DeviceType
	DeviceState   DeviceState
	DevicePowerKw float64
}

// Generator produces deterministic load readings for one device.
type Generator struct {
	entityID string
	source   *rng.Source
	interval timeseries.Interval
	config   Config
}

// New constructs a load Generator.
func New(entityID string, source *rng.Source, interval timeseries.Interval, config Config) *Generator {
	return &Generator{entityID: entityID, source: source, interval: interval, config: config}
}

func (g *Generator) EntityID() string              { return g.entityID }
func (g *Generator) Interval() timeseries.Interval { return g.interval }
func (g *Generator) Config() Config                { return g.config }

// GenerateAt returns the deterministic load reading at ts.
func (g *Generator) GenerateAt(ts time.Time) timeseries.Point[Reading] {
	return timeseries.GenerateAt(ts, g.interval, g.generateValue)
}

// IterateRange walks a range of aligned load readings.
func (g *Generator) IterateRange(r timeseries.Range) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, g.interval, g.generateValue)
}

// IterateRangeAt walks r at an explicit interval, overriding the
// generator's own configured sampling interval.
func (g *Generator) IterateRangeAt(r timeseries.Range, interval timeseries.Interval) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, interval, g.generateValue)
}

// IsOperating reports whether the device's schedule (weekend rule plus
// operating windows) permits running at ts. This ignores the duty-cycle
// draw — a schedule-permitted timestamp may still land OFF.
func (g *Generator) IsOperating(ts time.Time) bool {
	return g.shouldOperate(ts)
}

// OperatingHoursPerDay sums the configured window durations, accounting
// for overnight wrap.
func (g *Generator) OperatingHoursPerDay() float64 {
	var total float64
	for _, w := range g.config.OperatingWindows {
		if w.StartHour <= w.EndHour {
			total += float64(w.EndHour - w.StartHour)
		} else {
			total += float64((24 - w.StartHour) + w.EndHour)
		}
	}
	return total
}

// EstimateDailyEnergyConsumption multiplies operating hours by duty
// cycle and rated power for a rough daily kWh estimate.
func (g *Generator) EstimateDailyEnergyConsumption() float64 {
	effectiveHours := g.OperatingHoursPerDay() * (g.config.DutyCyclePct / 100.0)
	return g.config.RatedPowerKw * effectiveHours
}

func (g *Generator) shouldOperate(ts time.Time) bool {
	if timeseries.IsWeekend(ts) && !g.config.OperateOnWeekends {
		return false
	}
	hour := ts.Hour()
	for _, w := range g.config.OperatingWindows {
		if w.ContainsHour(hour) {
			return true
		}
	}
	return false
}

func (g *Generator) deviceState(ts time.Time, stream *rng.Stream) DeviceState {
	if !g.shouldOperate(ts) {
		return Off
	}
	dutyCycle := g.config.DutyCyclePct / 100.0
	if stream.Float64() < dutyCycle {
		return On
	}
	return Off
}

func (g *Generator) devicePower(state DeviceState, stream *rng.Stream) float64 {
	if state == Off {
		return 0.0
	}
	variance := g.config.RatedPowerKw * (g.config.PowerVariancePct / 100.0)
	power := g.config.RatedPowerKw + stream.Uniform(-variance, variance)
	if power < 0 {
		return 0.0
	}
	return power
}

// generateValue draws device state first, then power — power is only
// drawn from the stream when the device is ON, matching the reference
// draw order exactly (an OFF reading never consumes the variance draw).
func (g *Generator) generateValue(ts time.Time) Reading {
	tsMs := ts.UnixMilli()
	stream := g.source.TimestampRNG(g.entityID, tsMs)

	state := g.deviceState(ts, stream)
	power := g.devicePower(state, stream)

	return Reading{
		Timestamp:     ts,
		DeviceID:      g.entityID,
		DeviceType:    g.config.DeviceType,
		DeviceState:   state,
		DevicePowerKw: power,
	}
}
