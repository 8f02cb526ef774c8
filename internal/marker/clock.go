// Package marker drives the per-track playback marker: a small state machine
// that advances a cursor through a recording at a speed multiplier, and the
// tick sources that feed it.
package marker

import (
	"fmt"
	"math"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
)

// Phase of a marker clock.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
	Finished
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "idle"
}

// DefaultSpeed is the playback multiplier of a fresh clock.
const DefaultSpeed = 1.0

// Clock is the marker state machine of one track. Position is kept in whole
// seconds; sub-second progress is carried between advances.
// Not safe for concurrent use; the engine serialises all calls.
type Clock struct {
	phase    Phase
	position int
	boundary int
	speed    float64
	carry    float64
}

// NewClock returns an Idle clock. A non-positive speed falls back to DefaultSpeed.
func NewClock(speed float64) *Clock {
	if !validSpeed(speed) {
		speed = DefaultSpeed
	}
	return &Clock{speed: speed}
}

func validSpeed(m float64) bool {
	return m > 0 && !math.IsInf(m, 0) && !math.IsNaN(m)
}

// Place puts the marker at position and starts it towards boundary. A marker
// placed at or past its boundary is Finished straight away.
func (c *Clock) Place(position, boundary int) error {
	st := core.MarkerState{PositionSeconds: position, BoundarySeconds: boundary}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("place marker: %w", err)
	}
	c.position, c.boundary, c.carry = position, boundary, 0
	c.phase = Running
	if st.Finished() {
		c.phase = Finished
	}
	return nil
}

// Restore reinstates a persisted state, including its pause flag.
func (c *Clock) Restore(st core.MarkerState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("restore marker: %w", err)
	}
	c.position, c.boundary, c.carry = st.PositionSeconds, st.BoundarySeconds, 0
	switch {
	case st.Finished():
		c.phase = Finished
	case st.IsPaused:
		c.phase = Paused
	default:
		c.phase = Running
	}
	return nil
}

// Reset returns the clock to Idle, keeping its speed.
func (c *Clock) Reset() {
	c.phase, c.position, c.boundary, c.carry = Idle, 0, 0, 0
}

// Advance moves a Running marker by speed*elapsed and reports whether the
// position changed. Reaching the boundary clamps to it and finishes the clock.
func (c *Clock) Advance(elapsed time.Duration) bool {
	if c.phase != Running || elapsed <= 0 {
		return false
	}
	c.carry += elapsed.Seconds() * c.speed
	whole := math.Floor(c.carry)
	if whole < 1 {
		return false
	}
	c.carry -= whole

	next := c.position + int(whole)
	if next >= c.boundary {
		next = c.boundary
		c.phase = Finished
		c.carry = 0
	}
	moved := next != c.position
	c.position = next
	return moved
}

// Pause stops a Running clock. It reports whether the phase changed.
func (c *Clock) Pause() bool {
	if c.phase != Running {
		return false
	}
	c.phase = Paused
	return true
}

// Resume continues a Paused clock from its stored position; time spent paused
// is not replayed.
func (c *Clock) Resume() bool {
	if c.phase != Paused {
		return false
	}
	c.carry = 0
	c.phase = Running
	if c.position >= c.boundary {
		c.phase = Finished
	}
	return true
}

// SetSpeed changes the multiplier. Position is preserved and the sub-second
// carry restarts, so a running marker does not jump.
func (c *Clock) SetSpeed(m float64) error {
	if !validSpeed(m) {
		return fmt.Errorf("%w: speed multiplier %v", core.ErrInvalidInput, m)
	}
	c.speed = m
	c.carry = 0
	return nil
}

// Speed returns the multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// Phase returns the current phase.
func (c *Clock) Phase() Phase { return c.phase }

// Placed reports whether the clock holds a marker.
func (c *Clock) Placed() bool { return c.phase != Idle }

// State returns the canonical marker state.
func (c *Clock) State() core.MarkerState {
	return core.MarkerState{
		PositionSeconds: c.position,
		BoundarySeconds: c.boundary,
		IsPaused:        c.phase == Paused,
	}
}
