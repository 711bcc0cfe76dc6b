package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facis/simulation-service/meter"
)

func TestFloat32RegisterRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 230.5, 12345.678, -0.001}
	for _, v := range values {
		high, low := float32ToRegisters(v)
		got := registersToFloat32(high, low)
		assert.InDelta(t, float64(v), float64(got), 1e-3)
	}
}

func TestDataBlockServesKnownQuantities(t *testing.T) {
	reading := meter.Reading{
		MeterID: "meter-1",
		Readings: meter.Readings{
			ActivePowerL1W: 1000, ActivePowerL2W: 1100, ActivePowerL3W: 900,
			VoltageL1V: 231.2, VoltageL2V: 229.8, VoltageL3V: 230.5,
			CurrentL1A: 4.3, CurrentL2A: 4.8, CurrentL3A: 3.9,
			PowerFactor: 0.97, FrequencyHz: 50.01, TotalEnergyKwh: 1234.5,
		},
	}
	provider := func(id string) (meter.Reading, bool) {
		require.Equal(t, "meter-1", id)
		return reading, true
	}

	db := NewDataBlock("meter-1", provider)

	values := db.GetValues(19000, 2)
	got := registersToFloat32(values[0], values[1])
	assert.InDelta(t, 1000.0, float64(got), 0.1)
}

func TestDataBlockUnknownAddressReturnsZero(t *testing.T) {
	provider := func(id string) (meter.Reading, bool) {
		return meter.Reading{Timestamp: time.Now()}, true
	}
	db := NewDataBlock("meter-1", provider)

	values := db.GetValues(100, 4)
	for _, v := range values {
		assert.Equal(t, uint16(0), v)
	}
}

func TestDataBlockMissingMeterReturnsZero(t *testing.T) {
	provider := func(id string) (meter.Reading, bool) {
		return meter.Reading{}, false
	}
	db := NewDataBlock("meter-1", provider)

	values := db.GetValues(19000, 2)
	assert.Equal(t, []uint16{0, 0}, values)
}

func TestValidatePermissiveWithinMargin(t *testing.T) {
	provider := func(id string) (meter.Reading, bool) { return meter.Reading{}, false }
	db := NewDataBlock("meter-1", provider)

	assert.True(t, db.Validate(19064, 2))
	assert.True(t, db.Validate(19100, 1))
	assert.False(t, db.Validate(-1, 2))
	assert.False(t, db.Validate(0, 0))
}
