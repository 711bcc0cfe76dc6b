// Package modbus projects live meter readings onto a Janitza
// UMG 96RM-compatible Modbus TCP register map, and serves that map over
// a minimal MBAP-framed TCP listener. goburrow/modbus is a client
// library only and is not imported by this repo; the register store
// and TCP framing here are therefore
// hand-rolled, mirroring the reference server's own from-scratch
// implementation rather than the client idiom.
package modbus

import (
	"math"
	"sync"

	"github.com/facis/simulation-service/meter"
)

// maxRegisterAddress is one past the highest address this adapter
// answers for; anything at or beyond it returns zero.
const maxRegisterAddress = 19066

// quantity identifies one 2-register float32 slot in the register map.
type quantity int

const (
	activePowerL1 quantity = iota
	activePowerL2
	activePowerL3
	activePowerTotal
	voltageL1
	voltageL2
	voltageL3
	currentL1
	currentL2
	currentL3
	powerFactorQ
	totalEnergyQ
	frequencyQ
)

// registerMap is the normative Janitza UMG 96RM subset from the
// register table: each entry is the 0-based starting address of a
// 2-register (32-bit) float slot.
var registerMap = map[quantity]int{
	activePowerL1:    19000,
	activePowerL2:    19002,
	activePowerL3:    19004,
	activePowerTotal: 19006,
	voltageL1:        19020,
	voltageL2:        19022,
	voltageL3:        19024,
	currentL1:        19040,
	currentL2:        19042,
	currentL3:        19044,
	powerFactorQ:     19060,
	totalEnergyQ:     19062,
	frequencyQ:       19064,
}

// float32ToRegisters splits a float32 into its big-endian high/low
// 16-bit register words (IEEE-754 single precision, high word first).
func float32ToRegisters(value float32) (high, low uint16) {
	bits := math.Float32bits(value)
	high = uint16(bits >> 16)
	low = uint16(bits & 0xFFFF)
	return high, low
}

// registersToFloat32 is the inverse of float32ToRegisters.
func registersToFloat32(high, low uint16) float32 {
	bits := uint32(high)<<16 | uint32(low)
	return math.Float32frombits(bits)
}

// RegistersToFloat32 decodes a big-endian high/low register pair as read
// off the wire back into a float32, for callers outside this package
// that need to verify a register read against the value it encodes.
func RegistersToFloat32(high, low uint16) float32 {
	return registersToFloat32(high, low)
}

// MeterProvider resolves the current reading for a meter ID, pulled
// fresh on every poll — the adapter never caches a reading across
// reads.
type MeterProvider func(meterID string) (meter.Reading, bool)

// DataBlock serves one meter's readings as a Modbus register window
// for one unit (slave) ID. The client-requested address is internally
// offset by +1 when storing into the cache, mirroring the reference
// pymodbus server's own internal +1 adjustment on getValues. The same
// +1 is applied on lookup, so the addresses a client reads match the
// nominal register map exactly.
type DataBlock struct {
	mu       sync.Mutex
	meterID  string
	provider MeterProvider
	cache    map[int]uint16
}

// NewDataBlock constructs a DataBlock for meterID, resolved through provider.
func NewDataBlock(meterID string, provider MeterProvider) *DataBlock {
	return &DataBlock{meterID: meterID, provider: provider, cache: make(map[int]uint16)}
}

// refresh pulls a fresh reading and rebuilds the register cache. Must
// be called with mu held.
func (d *DataBlock) refresh() {
	reading, ok := d.provider(d.meterID)
	if !ok {
		d.cache = make(map[int]uint16)
		return
	}

	values := map[quantity]float64{
		activePowerL1:    reading.Readings.ActivePowerL1W,
		activePowerL2:    reading.Readings.ActivePowerL2W,
		activePowerL3:    reading.Readings.ActivePowerL3W,
		activePowerTotal: reading.Readings.ActivePowerL1W + reading.Readings.ActivePowerL2W + reading.Readings.ActivePowerL3W,
		voltageL1:        reading.Readings.VoltageL1V,
		voltageL2:        reading.Readings.VoltageL2V,
		voltageL3:        reading.Readings.VoltageL3V,
		currentL1:        reading.Readings.CurrentL1A,
		currentL2:        reading.Readings.CurrentL2A,
		currentL3:        reading.Readings.CurrentL3A,
		powerFactorQ:     reading.Readings.PowerFactor,
		totalEnergyQ:     reading.Readings.TotalEnergyKwh,
		frequencyQ:       reading.Readings.FrequencyHz,
	}

	cache := make(map[int]uint16, len(values)*2)
	for q, addr := range registerMap {
		high, low := float32ToRegisters(float32(values[q]))
		cache[addr+1] = high
		cache[addr+2] = low
	}
	d.cache = cache
}

// GetValues reads count registers starting at address, refreshing from
// the provider first. Addresses outside the published register map
// return zero rather than failing; requests that straddle a
// register-pair boundary simply read whatever is cached there
// (zero for any gap).
func (d *DataBlock) GetValues(address, count int) []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.refresh()

	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		addr := address + i
		if addr < 0 || addr >= maxRegisterAddress {
			continue
		}
		out[i] = d.cache[addr+1]
	}
	return out
}

// Validate reports whether the (address, count) request is acceptable.
// Permissive up to a margin past the highest published address, matching
// the reference server's tolerant validation.
func (d *DataBlock) Validate(address, count int) bool {
	if address < 0 || count <= 0 {
		return false
	}
	return address+count <= maxRegisterAddress+100
}
