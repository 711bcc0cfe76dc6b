// Package engine is the facade mediating between protocol adapters
// (HTTP, MQTT, Modbus) and the generator kernel: it owns the RNG, the
// simulation clock, and the registry of entities, and exposes the
// lifecycle and query operations the adapters call.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/facis/simulation-service/correlation"
	"github.com/facis/simulation-service/load"
	"github.com/facis/simulation-service/meter"
	"github.com/facis/simulation-service/price"
	"github.com/facis/simulation-service/pv"
	"github.com/facis/simulation-service/rng"
	"github.com/facis/simulation-service/simclock"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/weather"
)

// State mirrors the clock's state machine, with an added INITIALIZED
// value for before the clock has ever been started.
type State string

const (
	Initialized State = "INITIALIZED"
	Running     State = "RUNNING"
	Paused      State = "PAUSED"
	Stopped     State = "STOPPED"
)

// Kind is a static tag naming a generator family. The engine does not
// dispatch on Kind: it keeps one typed registry map per generator family
// and looks an entity ID up in each of them.
type Kind string

const (
	KindWeather Kind = "weather"
	KindPV      Kind = "pv"
	KindMeter   Kind = "meter"
	KindLoad    Kind = "load"
	KindPrice   Kind = "price"
)

// WeatherEntityConfig pairs an entity ID with its weather config.
type WeatherEntityConfig struct {
	EntityID string
	Config   weather.Config
}

// PVEntityConfig pairs a PV entity ID with its config; WeatherStationID
// in Config.WeatherStationID must name an already-registered weather entity.
type PVEntityConfig struct {
	EntityID string
	Config   pv.Config
}

// MeterEntityConfig pairs a meter entity ID with its config.
type MeterEntityConfig struct {
	EntityID string
	Config   meter.Config
}

// LoadEntityConfig pairs a consumer-load entity ID with its config.
type LoadEntityConfig struct {
	EntityID string
	Config   load.Config
}

// PriceEntityConfig pairs a price-feed entity ID with its config.
type PriceEntityConfig struct {
	EntityID string
	Config   price.Config
}

// Config is the full entity roster the engine is constructed from —
// identity and configuration that survive a reset(seed).
type Config struct {
	Seed         uint64
	Acceleration int
	StartTime    time.Time
	Interval     timeseries.Interval

	WeatherStations []WeatherEntityConfig
	PVSystems       []PVEntityConfig
	Meters          []MeterEntityConfig
	Loads           []LoadEntityConfig
	PriceFeeds      []PriceEntityConfig

	// CorrelationWeatherStationID, if set, names the weather entity fed
	// to the default correlation engine; PV/meter/load/price entities
	// in CorrelationXxxIDs are included the same way.
	CorrelationWeatherStationID string
	CorrelationPVSystemIDs      []string
	CorrelationMeterIDs         []string
	CorrelationLoadIDs          []string
	CorrelationPriceFeedID      string
}

// Snapshot describes the engine's current lifecycle state, as surfaced
// to protocol adapters (REST /simulation/status, MQTT simulation/status).
type Snapshot struct {
	State        State
	SimTime      time.Time
	Seed         uint64
	Acceleration int
	EntityIDs    []string
}

// Engine owns the RNG, the clock, and every registered generator. All
// mutable engine-level state (entity registries, lifecycle state) is
// guarded by mu; the generators themselves are immutable once built
// and may be called concurrently without additional synchronisation.
type Engine struct {
	mu sync.RWMutex

	config Config
	source *rng.Source
	clock  *simclock.Clock
	state  State

	weatherByID map[string]*weather.Generator
	pvByID      map[string]*pv.Generator
	meterByID   map[string]*meter.Generator
	loadByID    map[string]*load.Generator
	priceByID   map[string]*price.Generator

	correlation *correlation.Engine
}

// New constructs an Engine from cfg, in the INITIALIZED state.
func New(cfg Config) (*Engine, error) {
	e := &Engine{state: Initialized}
	if err := e.build(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// build (re)constructs the RNG and every generator from cfg, without
// touching the caller-visible lifecycle state. Used by both New and Reset.
func (e *Engine) build(cfg Config) error {
	clock, err := simclock.New(cfg.Acceleration, cfg.StartTime)
	if err != nil {
		return fmt.Errorf("engine: building clock: %w", err)
	}

	source := rng.New(cfg.Seed)

	weatherByID := make(map[string]*weather.Generator, len(cfg.WeatherStations))
	for _, wc := range cfg.WeatherStations {
		weatherByID[wc.EntityID] = weather.New(wc.EntityID, source, cfg.Interval, wc.Config)
	}

	pvByID := make(map[string]*pv.Generator, len(cfg.PVSystems))
	for _, pc := range cfg.PVSystems {
		station, ok := weatherByID[pc.Config.WeatherStationID]
		if !ok {
			return fmt.Errorf("engine: pv system %q references unknown weather station %q", pc.EntityID, pc.Config.WeatherStationID)
		}
		pvByID[pc.EntityID] = pv.New(pc.EntityID, cfg.Interval, pc.Config, station)
	}

	meterByID := make(map[string]*meter.Generator, len(cfg.Meters))
	for _, mc := range cfg.Meters {
		meterByID[mc.EntityID] = meter.New(mc.EntityID, source, cfg.Interval, mc.Config)
	}

	loadByID := make(map[string]*load.Generator, len(cfg.Loads))
	for _, lc := range cfg.Loads {
		loadByID[lc.EntityID] = load.New(lc.EntityID, source, cfg.Interval, lc.Config)
	}

	priceByID := make(map[string]*price.Generator, len(cfg.PriceFeeds))
	for _, pc := range cfg.PriceFeeds {
		priceByID[pc.EntityID] = price.New(pc.EntityID, source, cfg.Interval, pc.Config)
	}

	var pvSources []correlation.PVSource
	for _, id := range cfg.CorrelationPVSystemIDs {
		if g, ok := pvByID[id]; ok {
			pvSources = append(pvSources, g)
		}
	}
	var meterSources []correlation.MeterSource
	for _, id := range cfg.CorrelationMeterIDs {
		if g, ok := meterByID[id]; ok {
			meterSources = append(meterSources, g)
		}
	}
	var loadSources []correlation.LoadSource
	for _, id := range cfg.CorrelationLoadIDs {
		if g, ok := loadByID[id]; ok {
			loadSources = append(loadSources, g)
		}
	}
	var weatherSource correlation.WeatherSource
	if g, ok := weatherByID[cfg.CorrelationWeatherStationID]; ok {
		weatherSource = g
	}
	var priceSource correlation.PriceSource
	if g, ok := priceByID[cfg.CorrelationPriceFeedID]; ok {
		priceSource = g
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.config = cfg
	e.source = source
	e.clock = clock
	e.weatherByID = weatherByID
	e.pvByID = pvByID
	e.meterByID = meterByID
	e.loadByID = loadByID
	e.priceByID = priceByID
	e.correlation = correlation.New(weatherSource, pvSources, meterSources, loadSources, priceSource, cfg.Interval)
	return nil
}

// Start transitions the clock (and therefore the engine) to RUNNING.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Start()
	e.state = Running
}

// Pause freezes virtual time.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Pause()
	e.state = Paused
}

// Resume is an alias for Start from the PAUSED state; exposed
// separately because protocol adapters surface it as a distinct verb.
func (e *Engine) Resume() {
	e.Start()
}

// Stop halts the clock and marks the engine STOPPED.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Reset(e.config.StartTime)
	e.state = Stopped
}

// Reset rebuilds the RNG and every generator from a new seed while
// preserving entity identity and configuration, then returns to
// INITIALIZED. If newSeed is nil, the existing seed is kept.
func (e *Engine) Reset(newSeed *uint64) error {
	e.mu.RLock()
	cfg := e.config
	e.mu.RUnlock()

	if newSeed != nil {
		cfg.Seed = *newSeed
	}
	if err := e.build(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	e.state = Initialized
	e.mu.Unlock()
	return nil
}

// SetAcceleration updates the clock's acceleration factor in place,
// without touching entity identity or RNG state.
func (e *Engine) SetAcceleration(value int) error {
	e.mu.RLock()
	clock := e.clock
	e.mu.RUnlock()
	if err := clock.SetAcceleration(value); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.mu.Lock()
	e.config.Acceleration = value
	e.mu.Unlock()
	return nil
}

// Now returns the engine's current simulation time.
func (e *Engine) Now() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock.Now()
}

// Snapshot reports the engine's current lifecycle state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.weatherByID)+len(e.pvByID)+len(e.meterByID)+len(e.loadByID)+len(e.priceByID))
	for id := range e.weatherByID {
		ids = append(ids, id)
	}
	for id := range e.pvByID {
		ids = append(ids, id)
	}
	for id := range e.meterByID {
		ids = append(ids, id)
	}
	for id := range e.loadByID {
		ids = append(ids, id)
	}
	for id := range e.priceByID {
		ids = append(ids, id)
	}

	return Snapshot{
		State:        e.state,
		SimTime:      e.clock.Now(),
		Seed:         e.config.Seed,
		Acceleration: e.clock.Acceleration(),
		EntityIDs:    ids,
	}
}

// GenerateCurrent returns the reading for entityID at the engine's
// current simulation time.
func (e *Engine) GenerateCurrent(entityID string) (any, bool) {
	return e.GenerateAt(entityID, e.Now())
}

// GenerateAt returns the reading for entityID at ts, dispatching by
// which registry entityID belongs to.
func (e *Engine) GenerateAt(entityID string, ts time.Time) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if g, ok := e.weatherByID[entityID]; ok {
		return g.GenerateAt(ts).Value, true
	}
	if g, ok := e.pvByID[entityID]; ok {
		return g.GenerateAt(ts).Value, true
	}
	if g, ok := e.meterByID[entityID]; ok {
		return g.GenerateAt(ts).Value, true
	}
	if g, ok := e.loadByID[entityID]; ok {
		return g.GenerateAt(ts).Value, true
	}
	if g, ok := e.priceByID[entityID]; ok {
		return g.GenerateAt(ts).Value, true
	}
	return nil, false
}

// GenerateRange returns every reading for entityID across r.
func (e *Engine) GenerateRange(entityID string, r timeseries.Range) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if g, ok := e.weatherByID[entityID]; ok {
		return g.IterateRange(r), true
	}
	if g, ok := e.pvByID[entityID]; ok {
		return g.IterateRange(r), true
	}
	if g, ok := e.meterByID[entityID]; ok {
		return g.GenerateRangeWithEnergyTracking(r), true
	}
	if g, ok := e.loadByID[entityID]; ok {
		return g.IterateRange(r), true
	}
	if g, ok := e.priceByID[entityID]; ok {
		return g.IterateRange(r), true
	}
	return nil, false
}

// GenerateAllCurrent returns a mapping of every registered entity ID to
// its reading at the engine's current simulation time.
func (e *Engine) GenerateAllCurrent() map[string]any {
	now := e.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]any, len(e.weatherByID)+len(e.pvByID)+len(e.meterByID)+len(e.loadByID)+len(e.priceByID))
	for id, g := range e.weatherByID {
		out[id] = g.GenerateAt(now).Value
	}
	for id, g := range e.pvByID {
		out[id] = g.GenerateAt(now).Value
	}
	for id, g := range e.meterByID {
		out[id] = g.GenerateAt(now).Value
	}
	for id, g := range e.loadByID {
		out[id] = g.GenerateAt(now).Value
	}
	for id, g := range e.priceByID {
		out[id] = g.GenerateAt(now).Value
	}
	return out
}

// CurrentSnapshot returns the correlated cross-feed snapshot at the
// engine's current simulation time.
func (e *Engine) CurrentSnapshot() correlation.Snapshot {
	e.mu.RLock()
	corr := e.correlation
	e.mu.RUnlock()
	return corr.GenerateSnapshot(e.Now())
}

// The typed accessors below back the per-kind REST endpoints (list,
// current, history) — one entity kind per generator registry.

func (e *Engine) WeatherIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return keysOf(e.weatherByID)
}
func (e *Engine) PVIDs() []string    { e.mu.RLock(); defer e.mu.RUnlock(); return keysOf(e.pvByID) }
func (e *Engine) MeterIDs() []string { e.mu.RLock(); defer e.mu.RUnlock(); return keysOf(e.meterByID) }
func (e *Engine) LoadIDs() []string  { e.mu.RLock(); defer e.mu.RUnlock(); return keysOf(e.loadByID) }
func (e *Engine) PriceIDs() []string { e.mu.RLock(); defer e.mu.RUnlock(); return keysOf(e.priceByID) }

func keysOf[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) WeatherCurrent(id string) (weather.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.weatherByID[id]
	if !ok {
		return weather.Reading{}, false
	}
	return g.GenerateAt(e.clock.Now()).Value, true
}

// WeatherHistory walks id's readings over r at interval, overriding the
// entity's own configured sampling interval.
func (e *Engine) WeatherHistory(id string, r timeseries.Range, interval timeseries.Interval) ([]timeseries.Point[weather.Reading], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.weatherByID[id]
	if !ok {
		return nil, false
	}
	return g.IterateRangeAt(r, interval), true
}

func (e *Engine) PVCurrent(id string) (pv.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.pvByID[id]
	if !ok {
		return pv.Reading{}, false
	}
	return g.GenerateAt(e.clock.Now()).Value, true
}

// PVHistory walks id's readings over r at interval, overriding the
// entity's own configured sampling interval.
func (e *Engine) PVHistory(id string, r timeseries.Range, interval timeseries.Interval) ([]timeseries.Point[pv.Reading], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.pvByID[id]
	if !ok {
		return nil, false
	}
	return g.IterateRangeAt(r, interval), true
}

func (e *Engine) MeterCurrent(id string) (meter.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.meterByID[id]
	if !ok {
		return meter.Reading{}, false
	}
	return g.GenerateAt(e.clock.Now()).Value, true
}

// MeterHistory walks id's readings over r at interval, overriding the
// entity's own configured sampling interval, preserving the meter's
// sequential running-energy semantics at that interval.
func (e *Engine) MeterHistory(id string, r timeseries.Range, interval timeseries.Interval) ([]timeseries.Point[meter.Reading], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.meterByID[id]
	if !ok {
		return nil, false
	}
	return g.GenerateRangeWithEnergyTrackingAt(r, interval), true
}

func (e *Engine) LoadCurrent(id string) (load.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.loadByID[id]
	if !ok {
		return load.Reading{}, false
	}
	return g.GenerateAt(e.clock.Now()).Value, true
}

// LoadHistory walks id's readings over r at interval, overriding the
// entity's own configured sampling interval.
func (e *Engine) LoadHistory(id string, r timeseries.Range, interval timeseries.Interval) ([]timeseries.Point[load.Reading], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.loadByID[id]
	if !ok {
		return nil, false
	}
	return g.IterateRangeAt(r, interval), true
}

func (e *Engine) PriceCurrent(id string) (price.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.priceByID[id]
	if !ok {
		return price.Reading{}, false
	}
	return g.GenerateAt(e.clock.Now()).Value, true
}

// PriceHistory walks id's readings over r at interval, overriding the
// entity's own configured sampling interval.
func (e *Engine) PriceHistory(id string, r timeseries.Range, interval timeseries.Interval) ([]timeseries.Point[price.Reading], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.priceByID[id]
	if !ok {
		return nil, false
	}
	return g.IterateRangeAt(r, interval), true
}

// PriceAtFloor reports whether a price feed's current reading has been
// clamped to its configured minimum, the condition the simulation
// surfaces as a facis/events/alerts notice.
func (e *Engine) PriceAtFloor(id string, reading price.Reading) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.priceByID[id]
	if !ok {
		return false
	}
	return reading.PriceEurPerKwh <= g.Config().MinPrice
}

// PriceForecast returns a range query over the price feed starting at
// the engine's current simulation time and spanning hours, sampled at
// interval.
func (e *Engine) PriceForecast(id string, hours int, interval timeseries.Interval) ([]timeseries.Point[price.Reading], bool) {
	start := e.Now()
	end := start.Add(time.Duration(hours) * time.Hour)
	r, err := timeseries.NewRange(start, end)
	if err != nil {
		return nil, false
	}
	return e.PriceHistory(id, r, interval)
}

// MeterProvider adapts the engine's meter registry to the modbus
// adapter's MeterProvider signature, always returning a fresh reading
// at the engine's current simulation time.
func (e *Engine) MeterProvider() func(meterID string) (meter.Reading, bool) {
	return e.MeterCurrent
}
