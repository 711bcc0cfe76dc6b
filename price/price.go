// Package price simulates day-ahead electricity spot prices with
// time-of-day tariff bands, weekend discounts, and random volatility.
// Prices are for analytical correlation only, never for billing.
package price

import (
	"time"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
)

// TariffType names a time-of-day pricing band.
type TariffType string

const (
	Night       TariffType = "night"
	MorningPeak TariffType = "morning_peak"
	Midday      TariffType = "midday"
	EveningPeak TariffType = "evening_peak"
	Evening     TariffType = "evening"
)

// tariffBand is a half-open [startHour, endHour) window. Order matters:
// bands are checked in sequence and must stay disjoint and exhaustive
// over the 24-hour day; a plain map would lose that ordering guarantee.
type tariffBand struct {
	tariff    TariffType
	startHour int
	endHour   int
}

var tariffBands = []tariffBand{
	{Night, 0, 6},
	{MorningPeak, 6, 9},
	{Midday, 9, 17},
	{EveningPeak, 17, 20},
	{Evening, 20, 24},
}

// hourlyMultipliers smooths intra-band transitions; index is the hour
// of day. Values preserved verbatim from the reference curve.
var hourlyMultipliers = [24]float64{
	0.90, 0.85, 0.82, 0.83, 0.88, 0.95, 1.05, 1.15, 1.25, 1.10, 1.05, 1.00,
	0.98, 0.95, 0.97, 1.02, 1.08, 1.20, 1.35, 1.40, 1.15, 1.05, 0.98, 0.93,
}

// tariffOf returns the tariff band containing the given hour, falling
// back to Night if the bands somehow fail to cover it.
func tariffOf(hour int) TariffType {
	for _, b := range tariffBands {
		if hour >= b.startHour && hour < b.endHour {
			return b.tariff
		}
	}
	return Night
}

func hourlyMultiplier(hour, minute int) float64 {
	current := hourlyMultipliers[hour]
	next := hourlyMultipliers[(hour+1)%24]
	return current + (next-current)*(float64(minute)/60.0)
}

// Config describes one price feed.
type Config struct {
	FeedID             string  `json:"feed_id"`
	NightPrice         float64 `json:"night_price"`
	MorningPeakPrice   float64 `json:"morning_peak_price"`
	MiddayPrice        float64 `json:"midday_price"`
	EveningPeakPrice   float64 `json:"evening_peak_price"`
	EveningPrice       float64 `json:"evening_price"`
	WeekendDiscountPct float64 `json:"weekend_discount_pct"`
	VolatilityPct      float64 `json:"volatility_pct"`
	MinPrice           float64 `json:"min_price"`
}

// DefaultConfig returns the EPEX-Spot-DE-like reference defaults.
func DefaultConfig(feedID string) Config {
	return Config{
		FeedID:             feedID,
		NightPrice:         0.15,
		MorningPeakPrice:   0.33,
		MiddayPrice:        0.26,
		EveningPeakPrice:   0.40,
		EveningPrice:       0.22,
		WeekendDiscountPct: 7.5,
		VolatilityPct:      10.0,
		MinPrice:           0.05,
	}
}

func (c Config) basePrice(tariff TariffType) float64 {
	switch tariff {
	case Night:
		return c.NightPrice
	case MorningPeak:
		return c.MorningPeakPrice
	case Midday:
		return c.MiddayPrice
	case EveningPeak:
		return c.EveningPeakPrice
	case Evening:
		return c.EveningPrice
	default:
		return c.NightPrice
	}
}

// Reading is a single price observation.
type Reading struct {
	Timestamp      time.Time
	PriceEurPerKwh float64
	Tariff         TariffType
}

// Generator produces deterministic price readings for one feed.
type Generator struct {
	entityID string
	source   *rng.Source
	interval timeseries.Interval
	config   Config
}

// New constructs a price Generator.
func New(entityID string, source *rng.Source, interval timeseries.Interval, config Config) *Generator {
	return &Generator{entityID: entityID, source: source, interval: interval, config: config}
}

func (g *Generator) EntityID() string              { return g.entityID }
func (g *Generator) Interval() timeseries.Interval { return g.interval }
func (g *Generator) Config() Config                { return g.config }

// GenerateAt returns the deterministic price reading at ts.
func (g *Generator) GenerateAt(ts time.Time) timeseries.Point[Reading] {
	return timeseries.GenerateAt(ts, g.interval, g.generateValue)
}

// IterateRange walks a range of aligned price readings.
func (g *Generator) IterateRange(r timeseries.Range) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, g.interval, g.generateValue)
}

// IterateRangeAt walks r at an explicit interval, overriding the
// generator's own configured sampling interval.
func (g *Generator) IterateRangeAt(r timeseries.Range, interval timeseries.Interval) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, interval, g.generateValue)
}

// AverageDailyPrice samples the four quarter-hours of every hour of the
// day containing ts and returns their mean.
func (g *Generator) AverageDailyPrice(ts time.Time) float64 {
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	var total float64
	var count int
	for hour := 0; hour < 24; hour++ {
		for _, minute := range [4]int{0, 15, 30, 45} {
			at := dayStart.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
			total += g.generateValue(at).PriceEurPerKwh
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return total / float64(count)
}

// PriceRange returns the (min, max) hourly price for the day containing ts.
func (g *Generator) PriceRange(ts time.Time) (min, max float64) {
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	for hour := 0; hour < 24; hour++ {
		at := dayStart.Add(time.Duration(hour) * time.Hour)
		p := g.generateValue(at).PriceEurPerKwh
		if hour == 0 || p < min {
			min = p
		}
		if hour == 0 || p > max {
			max = p
		}
	}
	return min, max
}

// generateValue follows a fixed sequence: tariff lookup, base price,
// hourly multiplier, weekend discount, volatility, then the price floor.
func (g *Generator) generateValue(ts time.Time) Reading {
	tsMs := ts.UnixMilli()
	stream := g.source.TimestampRNG(g.entityID, tsMs)

	tariff := tariffOf(ts.Hour())
	p := g.config.basePrice(tariff)
	p *= hourlyMultiplier(ts.Hour(), ts.Minute())

	if timeseries.IsWeekend(ts) {
		p *= 1 - g.config.WeekendDiscountPct/100.0
	}

	volatility := g.config.VolatilityPct / 100.0
	p *= 1 + stream.Normal(0, volatility)

	if p < g.config.MinPrice {
		p = g.config.MinPrice
	}

	return Reading{Timestamp: ts, PriceEurPerKwh: p, Tariff: tariff}
}
