// Package weather simulates temperature, humidity, wind and solar
// irradiance for a weather station entity, feeding directly into PV
// generation.
package weather

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/timeseries"
)

// Config holds the physical parameters of a simulated weather station.
// Defaults match the reference implementation (Berlin).
type Config struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	BaseTemperatureSummerC float64 `json:"base_temperature_summer_c"`
	BaseTemperatureWinterC float64 `json:"base_temperature_winter_c"`
	DailyTempAmplitudeC    float64 `json:"daily_temp_amplitude_c"`
	TemperatureVarianceC   float64 `json:"temperature_variance_c"`

	MaxClearSkyGHIWm2 float64 `json:"max_clear_sky_ghi_wm2"`

	BaseCloudCoverPct float64 `json:"base_cloud_cover_pct"`
	CloudVariancePct  float64 `json:"cloud_variance_pct"`

	BaseWindSpeedMs            float64 `json:"base_wind_speed_ms"`
	WindVarianceMs             float64 `json:"wind_variance_ms"`
	PrevailingWindDirectionDeg float64 `json:"prevailing_wind_direction_deg"`
	WindDirectionVarianceDeg   float64 `json:"wind_direction_variance_deg"`

	BaseHumidityPct     float64 `json:"base_humidity_pct"`
	HumidityVariancePct float64 `json:"humidity_variance_pct"`
}

// DefaultConfig returns the reference station defaults (Berlin).
func DefaultConfig() Config {
	return Config{
		Latitude:                   52.52,
		Longitude:                  13.405,
		BaseTemperatureSummerC:     20.0,
		BaseTemperatureWinterC:     2.0,
		DailyTempAmplitudeC:        8.0,
		TemperatureVarianceC:       2.0,
		MaxClearSkyGHIWm2:          1000.0,
		BaseCloudCoverPct:          40.0,
		CloudVariancePct:           20.0,
		BaseWindSpeedMs:            4.0,
		WindVarianceMs:             3.0,
		PrevailingWindDirectionDeg: 270.0,
		WindDirectionVarianceDeg:   45.0,
		BaseHumidityPct:            65.0,
		HumidityVariancePct:        15.0,
	}
}

// Conditions carries the physical weather measurements.
type Conditions struct {
	TemperatureC     float64
	HumidityPct      float64
	WindSpeedMs      float64
	WindDirectionDeg float64
	CloudCoverPct    float64
	GHIWm2           float64
	DNIWm2           float64
	DHIWm2           float64
}

// Reading is a full weather observation at a point in time.
type Reading struct {
	Timestamp  time.Time
	Latitude   float64
	Longitude  float64
	Conditions Conditions
}

// Generator produces deterministic weather readings for one station.
type Generator struct {
	entityID string
	source   *rng.Source
	interval timeseries.Interval
	config   Config
}

// New constructs a weather Generator.
func New(entityID string, source *rng.Source, interval timeseries.Interval, config Config) *Generator {
	return &Generator{entityID: entityID, source: source, interval: interval, config: config}
}

func (g *Generator) EntityID() string              { return g.entityID }
func (g *Generator) Interval() timeseries.Interval { return g.interval }
func (g *Generator) Config() Config                { return g.config }

// GenerateAt aligns ts to the generator's interval and returns the
// deterministic reading at that timestamp.
func (g *Generator) GenerateAt(ts time.Time) timeseries.Point[Reading] {
	return timeseries.GenerateAt(ts, g.interval, g.generateValue)
}

// IterateRange returns every aligned weather reading in the range,
// computed eagerly into one slice.
func (g *Generator) IterateRange(r timeseries.Range) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, g.interval, g.generateValue)
}

// IterateRangeAt walks r at an explicit interval, overriding the
// generator's own configured sampling interval — used when a caller
// requests a coarser or finer history granularity than the generator
// was built with.
func (g *Generator) IterateRangeAt(r timeseries.Range, interval timeseries.Interval) []timeseries.Point[Reading] {
	return timeseries.GenerateRange(r, interval, g.generateValue)
}

// generateValue is the pure per-timestamp computation. Draw order from
// the shared per-timestamp stream: cloud cover, temperature, humidity,
// wind speed, wind direction — then a *separate* sub-stream (keyed by
// entityID+"_irr") draws the irradiance cloud micro-variability. This
// order is load-bearing: reordering changes every downstream value.
func (g *Generator) generateValue(ts time.Time) Reading {
	tsMs := ts.UnixMilli()
	stream := g.source.TimestampRNG(g.entityID, tsMs)

	cloudCover := calculateCloudCover(ts, g.config.BaseCloudCoverPct, stream, g.config.CloudVariancePct)
	temperature := calculateTemperature(ts, g.config.BaseTemperatureSummerC, g.config.BaseTemperatureWinterC, g.config.DailyTempAmplitudeC, stream, g.config.TemperatureVarianceC)
	humidity := calculateHumidityFromTemperature(temperature, g.config.BaseHumidityPct, stream, g.config.HumidityVariancePct)
	windSpeed := calculateWindSpeed(ts, g.config.BaseWindSpeedMs, stream, g.config.WindVarianceMs)
	windDirection := calculateWindDirection(g.config.PrevailingWindDirectionDeg, stream, g.config.WindDirectionVarianceDeg)

	irrStream := g.source.TimestampRNG(g.entityID+"_irr", tsMs)
	irr := calculateFullIrradiance(ts, g.config.Latitude, g.config.Longitude, cloudCover, g.config.MaxClearSkyGHIWm2, irrStream)

	return Reading{
		Timestamp: ts,
		Latitude:  g.config.Latitude,
		Longitude: g.config.Longitude,
		Conditions: Conditions{
			TemperatureC:     temperature,
			HumidityPct:      humidity,
			WindSpeedMs:      windSpeed,
			WindDirectionDeg: windDirection,
			CloudCoverPct:    cloudCover,
			GHIWm2:           irr.GHI,
			DNIWm2:           irr.DNI,
			DHIWm2:           irr.DHI,
		},
	}
}

// --- temperature & humidity ---

func seasonalFactor(ts time.Time) float64 {
	dayOfYear := float64(ts.YearDay())
	angle := 2 * math.Pi * (dayOfYear - 182) / 365
	return math.Cos(angle)
}

func diurnalFactor(ts time.Time) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
	angle := 2 * math.Pi * (hour - 15) / 24
	return math.Cos(angle)
}

func calculateTemperature(ts time.Time, baseSummerC, baseWinterC, dailyAmplitudeC float64, stream *rng.Stream, varianceC float64) float64 {
	sf := seasonalFactor(ts)
	seasonalMid := (baseSummerC + baseWinterC) / 2
	seasonalAmp := (baseSummerC - baseWinterC) / 2
	seasonalTemp := seasonalMid + seasonalAmp*sf

	effectiveAmplitude := dailyAmplitudeC * (0.6 + 0.4*(sf+1)/2)
	temp := seasonalTemp + effectiveAmplitude*diurnalFactor(ts)

	if varianceC > 0 {
		temp += stream.Normal(0, varianceC)
	}
	return temp
}

func calculateHumidityFromTemperature(temperatureC, baseHumidity float64, stream *rng.Stream, variance float64) float64 {
	tempEffect := math.Max(0, temperatureC-15) * 1.0
	humidity := baseHumidity - tempEffect
	if variance > 0 {
		humidity += stream.Normal(0, variance)
	}
	return math.Max(20.0, math.Min(95.0, humidity))
}

// --- wind & cloud ---

func diurnalWindFactor(ts time.Time) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
	angle := 2 * math.Pi * (hour - 14) / 24
	factor := 1.0 - 0.4*math.Cos(angle)
	return math.Max(0.6, math.Min(1.4, factor))
}

func calculateWindSpeed(ts time.Time, baseSpeedMs float64, stream *rng.Stream, varianceMs float64) float64 {
	speed := baseSpeedMs * diurnalWindFactor(ts)
	if varianceMs > 0 {
		speed += stream.Normal(0, varianceMs)
	}
	return math.Max(0.0, speed)
}

func calculateWindDirection(prevailingDeg float64, stream *rng.Stream, varianceDeg float64) float64 {
	direction := prevailingDeg
	if varianceDeg > 0 {
		direction += stream.Normal(0, varianceDeg)
	}
	direction = math.Mod(direction, 360)
	if direction < 0 {
		direction += 360
	}
	return direction
}

func calculateCloudCover(ts time.Time, baseCoverPct float64, stream *rng.Stream, variancePct float64) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
	angle := 2 * math.Pi * (hour - 15) / 24
	diurnalVariation := -0.15 * math.Cos(angle)

	cover := baseCoverPct * (1 + diurnalVariation)
	if variancePct > 0 {
		cover += stream.Normal(0, variancePct)
	}
	return math.Max(0.0, math.Min(100.0, cover))
}

// --- solar position & irradiance ---

// SolarPosition wraps the altitude/azimuth computed by suncalc, exposed
// in degrees for the clear-sky model below.
type SolarPosition struct {
	AltitudeDeg float64
	AzimuthDeg  float64
	IsDaylight  bool
}

func calculateSolarPosition(ts time.Time, latitude, longitude float64) SolarPosition {
	pos := suncalc.GetPosition(ts.UTC(), latitude, longitude)
	altitudeDeg := pos.Altitude * 180 / math.Pi
	azimuthDeg := math.Mod(pos.Azimuth*180/math.Pi+180, 360)
	if azimuthDeg < 0 {
		azimuthDeg += 360
	}
	return SolarPosition{
		AltitudeDeg: math.Max(0, altitudeDeg),
		AzimuthDeg:  azimuthDeg,
		IsDaylight:  altitudeDeg > 0,
	}
}

func calculateClearSkyGHI(solarAltitudeDeg, maxGHIWm2 float64) float64 {
	if solarAltitudeDeg <= 0 {
		return 0.0
	}
	altitudeRad := solarAltitudeDeg * math.Pi / 180
	airMass := 1.0 / math.Max(math.Sin(altitudeRad), 0.05)
	transmission := math.Pow(0.7, math.Pow(airMass, 0.678))
	ghi := maxGHIWm2 * math.Sin(altitudeRad) * transmission
	return math.Max(0, ghi)
}

func applyCloudFactor(clearSkyGHI, cloudCoverPct float64, stream *rng.Stream) float64 {
	if clearSkyGHI <= 0 {
		return 0.0
	}
	baseFactor := 1.0 - 0.5*(cloudCoverPct/100.0)
	if stream != nil {
		variability := stream.Uniform(-0.05, 0.05)
		baseFactor = math.Max(0.3, math.Min(1.0, baseFactor+variability))
	}
	return clearSkyGHI * baseFactor
}

type irradianceComponents struct {
	GHI, DNI, DHI float64
}

func calculateIrradianceComponents(ghiWm2, solarAltitudeDeg, cloudCoverPct float64) irradianceComponents {
	if ghiWm2 <= 0 || solarAltitudeDeg <= 0 {
		return irradianceComponents{}
	}
	altitudeRad := solarAltitudeDeg * math.Pi / 180
	kt := 1.0 - 0.7*(cloudCoverPct/100.0)

	var diffuseFraction float64
	switch {
	case kt <= 0.22:
		diffuseFraction = 1.0 - 0.09*kt
	case kt <= 0.80:
		diffuseFraction = 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		diffuseFraction = 0.165
	}

	dhi := ghiWm2 * diffuseFraction
	directHorizontal := ghiWm2 - dhi
	dni := directHorizontal / math.Max(math.Sin(altitudeRad), 0.05)

	return irradianceComponents{
		GHI: math.Max(0, ghiWm2),
		DNI: math.Max(0, math.Min(dni, 1200)),
		DHI: math.Max(0, dhi),
	}
}

func calculateFullIrradiance(ts time.Time, latitude, longitude, cloudCoverPct, maxGHIWm2 float64, stream *rng.Stream) irradianceComponents {
	pos := calculateSolarPosition(ts, latitude, longitude)
	if !pos.IsDaylight {
		return irradianceComponents{}
	}
	clearSky := calculateClearSkyGHI(pos.AltitudeDeg, maxGHIWm2)
	actualGHI := applyCloudFactor(clearSky, cloudCoverPct, stream)
	return calculateIrradianceComponents(actualGHI, pos.AltitudeDeg, cloudCoverPct)
}
