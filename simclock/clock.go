// Package simclock implements the simulation's virtual clock: accelerated
// time with pause/resume and absolute jumps, serialised under a single
// mutex so every caller observes a consistent view of "now".
package simclock

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the clock's three lifecycle states.
type State string

const (
	Stopped State = "stopped"
	Running State = "running"
	Paused  State = "paused"
)

// Snapshot is a point-in-time view of the clock, safe to read without
// holding the clock's lock.
type Snapshot struct {
	SimulationTime           time.Time
	RealTime                 time.Time
	Acceleration             int
	State                    State
	ElapsedSimulationSeconds float64
	ElapsedRealSeconds       float64
}

// Clock is the simulation's virtual time source. The zero value is not
// usable; construct with New.
type Clock struct {
	mu sync.Mutex

	acceleration int
	state        State

	startSimTime   time.Time
	currentSimTime time.Time

	// originalStartTime is the start time given to New; Reset with a zero
	// time returns to it.
	originalStartTime time.Time

	startReal        time.Time
	haveStartReal    bool
	pauseReal        time.Time
	havePauseReal    bool
	accumulatedPause time.Duration
}

// New constructs a Clock anchored at startTime (or time.Now().UTC() if
// the zero value is passed) with the given acceleration factor, which
// must be in [1, 1000].
func New(acceleration int, startTime time.Time) (*Clock, error) {
	if acceleration < 1 || acceleration > 1000 {
		return nil, fmt.Errorf("acceleration must be between 1 and 1000, got %d", acceleration)
	}
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	} else {
		startTime = startTime.UTC()
	}
	return &Clock{
		acceleration:      acceleration,
		state:             Stopped,
		startSimTime:      startTime,
		currentSimTime:    startTime,
		originalStartTime: startTime,
	}, nil
}

// Acceleration returns the current acceleration factor.
func (c *Clock) Acceleration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceleration
}

// SetAcceleration updates the acceleration factor, reanchoring the clock
// first so the change takes effect without a time jump.
func (c *Clock) SetAcceleration(value int) error {
	if value < 1 || value > 1000 {
		return fmt.Errorf("acceleration must be between 1 and 1000, got %d", value)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		c.updateSimTimeLocked()
		c.startSimTime = c.currentSimTime
		c.startReal = time.Now()
		c.accumulatedPause = 0
	} else if c.state == Paused && c.havePauseReal {
		c.startSimTime = c.currentSimTime
		c.startReal = c.pauseReal
		c.accumulatedPause = 0
	}
	c.acceleration = value
	return nil
}

// State returns the clock's current lifecycle state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Now returns the current simulation time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		c.updateSimTimeLocked()
	}
	return c.currentSimTime
}

// updateSimTimeLocked recomputes currentSimTime from elapsed monotonic
// real time. Caller must hold mu and the clock must be Running.
func (c *Clock) updateSimTimeLocked() {
	if !c.haveStartReal {
		return
	}
	elapsedReal := time.Since(c.startReal) - c.accumulatedPause
	elapsedSim := time.Duration(float64(elapsedReal) * float64(c.acceleration))
	c.currentSimTime = c.startSimTime.Add(elapsedSim)
}

// Start begins or resumes the clock.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Running:
		return
	case Stopped:
		c.startReal = time.Now()
		c.haveStartReal = true
		c.accumulatedPause = 0
	case Paused:
		if c.havePauseReal {
			c.accumulatedPause += time.Since(c.pauseReal)
			c.havePauseReal = false
		}
	}
	c.state = Running
}

// Pause freezes the clock at its current simulation time. Idempotent
// when not Running.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return
	}
	c.updateSimTimeLocked()
	c.pauseReal = time.Now()
	c.havePauseReal = true
	c.state = Paused
}

// Reset returns the clock to Stopped, dropping all anchors, and sets the
// simulation time to startTime (or the original start time if zero).
func (c *Clock) Reset(startTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Stopped
	c.haveStartReal = false
	c.havePauseReal = false
	c.accumulatedPause = 0

	if !startTime.IsZero() {
		c.startSimTime = startTime.UTC()
	} else {
		c.startSimTime = c.originalStartTime
	}
	c.currentSimTime = c.startSimTime
}

// SetTime jumps the simulation time to t. If the clock is Running it
// reanchors so virtual time continues from t at the configured
// acceleration.
func (c *Clock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.UTC()
	c.currentSimTime = t

	if c.state == Running {
		c.startSimTime = t
		c.startReal = time.Now()
		c.haveStartReal = true
		c.accumulatedPause = 0
	}
}

// Advance moves the simulation time forward by d, reanchoring if Running.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		c.updateSimTimeLocked()
	}
	c.currentSimTime = c.currentSimTime.Add(d)

	if c.state == Running {
		c.startSimTime = c.currentSimTime
		c.startReal = time.Now()
		c.haveStartReal = true
		c.accumulatedPause = 0
	}
	return c.currentSimTime
}

// AdvanceTo moves the simulation time forward to target. It is an error
// to advance to a time strictly before the current simulation time.
func (c *Clock) AdvanceTo(target time.Time) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target = target.UTC()
	if target.Before(c.currentSimTime) {
		return time.Time{}, fmt.Errorf("cannot advance to a time in the past: target %s before current %s", target, c.currentSimTime)
	}

	c.currentSimTime = target

	if c.state == Running {
		c.startSimTime = target
		c.startReal = time.Now()
		c.haveStartReal = true
		c.accumulatedPause = 0
	}
	return c.currentSimTime, nil
}

// Snapshot returns a consistent point-in-time view of the clock.
func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		c.updateSimTimeLocked()
	}

	elapsedSim := c.currentSimTime.Sub(c.startSimTime).Seconds()

	var elapsedReal float64
	if c.haveStartReal {
		switch {
		case c.state == Paused && c.havePauseReal:
			elapsedReal = c.pauseReal.Sub(c.startReal).Seconds() - c.accumulatedPause.Seconds()
		case c.state == Running:
			elapsedReal = time.Since(c.startReal).Seconds() - c.accumulatedPause.Seconds()
		}
	}

	return Snapshot{
		SimulationTime:           c.currentSimTime,
		RealTime:                 time.Now().UTC(),
		Acceleration:             c.acceleration,
		State:                    c.state,
		ElapsedSimulationSeconds: elapsedSim,
		ElapsedRealSeconds:       elapsedReal,
	}
}
