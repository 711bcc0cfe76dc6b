package wireformat

import (
	"time"

	"github.com/facis/simulation-service/correlation"
	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/weather"
)

// WeatherPayload builds the rounded wire representation of a weather
// reading, shared by the REST and MQTT adapters.
func WeatherPayload(reading weather.Reading) map[string]any {
	c := reading.Conditions
	return map[string]any{
		"timestamp":          reading.Timestamp.Format(time.RFC3339),
		"latitude":           reading.Latitude,
		"longitude":          reading.Longitude,
		"temperature_c":      Round(c.TemperatureC, TemperaturePlaces),
		"humidity_pct":       Round(c.HumidityPct, HumidityPlaces),
		"wind_speed_ms":      Round(c.WindSpeedMs, PowerPlaces),
		"wind_direction_deg": Round(c.WindDirectionDeg, PowerPlaces),
		"cloud_cover_pct":    Round(c.CloudCoverPct, HumidityPlaces),
		"ghi_wm2":            Round(c.GHIWm2, IrradiancePlaces),
		"dni_wm2":            Round(c.DNIWm2, IrradiancePlaces),
		"dhi_wm2":            Round(c.DHIWm2, IrradiancePlaces),
	}
}

// PVPayload builds the rounded wire representation of a PV reading.
func PVPayload(reading pv.Reading) map[string]any {
	v := reading.Readings
	return map[string]any{
		"timestamp":            reading.Timestamp.Format(time.RFC3339),
		"system_id":            reading.SystemID,
		"power_output_kw":      Round(v.PowerOutputKw, PowerPlaces),
		"daily_energy_kwh":     Round(v.DailyEnergyKwh, EnergyPlaces),
		"irradiance_wm2":       Round(v.IrradianceWm2, IrradiancePlaces),
		"module_temperature_c": Round(v.ModuleTemperatureC, TemperaturePlaces),
		"efficiency_pct":       Round(v.EfficiencyPct, HumidityPlaces),
	}
}

// MeterPayload builds the rounded wire representation of a meter reading.
func MeterPayload(reading meter.Reading) map[string]any {
	v := reading.Readings
	return map[string]any{
		"timestamp":         reading.Timestamp.Format(time.RFC3339),
		"meter_id":          reading.MeterID,
		"active_power_l1_w": Round(v.ActivePowerL1W, PowerPlaces),
		"active_power_l2_w": Round(v.ActivePowerL2W, PowerPlaces),
		"active_power_l3_w": Round(v.ActivePowerL3W, PowerPlaces),
		"voltage_l1_v":      Round(v.VoltageL1V, VoltagePlaces),
		"voltage_l2_v":      Round(v.VoltageL2V, VoltagePlaces),
		"voltage_l3_v":      Round(v.VoltageL3V, VoltagePlaces),
		"current_l1_a":      Round(v.CurrentL1A, CurrentPlaces),
		"current_l2_a":      Round(v.CurrentL2A, CurrentPlaces),
		"current_l3_a":      Round(v.CurrentL3A, CurrentPlaces),
		"power_factor":      Round(v.PowerFactor, PowerFactorPlaces),
		"frequency_hz":      Round(v.FrequencyHz, FrequencyPlaces),
		"total_energy_kwh":  Round(v.TotalEnergyKwh, EnergyPlaces),
	}
}

// LoadPayload builds the rounded wire representation of a consumer-load reading.
func LoadPayload(reading load.Reading) map[string]any {
	return map[string]any{
		"timestamp":       reading.Timestamp.Format(time.RFC3339),
		"device_id":       reading.DeviceID,
		"device_type":     reading.DeviceType,
		"device_state":    reading.DeviceState,
		"device_power_kw": Round(reading.DevicePowerKw, PowerPlaces),
	}
}

// PricePayload builds the rounded wire representation of a price reading.
func PricePayload(reading price.Reading) map[string]any {
	return map[string]any{
		"timestamp":         reading.Timestamp.Format(time.RFC3339),
		"price_eur_per_kwh": Round(reading.PriceEurPerKwh, PricePlaces),
		"tariff":            reading.Tariff,
	}
}

// CorrelationPayload builds the rounded wire representation of a
// correlated cross-feed snapshot.
func CorrelationPayload(snap correlation.Snapshot) map[string]any {
	out := map[string]any{
		"timestamp": snap.Timestamp.Format(time.RFC3339),
		"metrics": map[string]any{
			"total_consumption_kw":      Round(snap.Metrics.TotalConsumptionKw, PowerPlaces),
			"total_generation_kw":       Round(snap.Metrics.TotalGenerationKw, PowerPlaces),
			"net_grid_power_kw":         Round(snap.Metrics.NetGridPowerKw, PowerPlaces),
			"self_consumption_ratio":    Round(snap.Metrics.SelfConsumptionRatio, PowerFactorPlaces),
			"current_cost_eur_per_hour": Round(snap.Metrics.CurrentCostEurPerHour, PricePlaces),
		},
	}
	if snap.Weather != nil {
		out["weather"] = WeatherPayload(*snap.Weather)
	}
	if snap.Price != nil {
		out["price"] = PricePayload(*snap.Price)
	}
	pvOut := make([]map[string]any, 0, len(snap.PVReadings))
	for _, p := range snap.PVReadings {
		pvOut = append(pvOut, PVPayload(p))
	}
	out["pv"] = pvOut
	meterOut := make([]map[string]any, 0, len(snap.MeterReadings))
	for _, m := range snap.MeterReadings {
		meterOut = append(meterOut, MeterPayload(m))
	}
	out["meters"] = meterOut
	loadOut := make([]map[string]any, 0, len(snap.ConsumerLoads))
	for _, l := range snap.ConsumerLoads {
		loadOut = append(loadOut, LoadPayload(l))
	}
	out["loads"] = loadOut
	return out
}
