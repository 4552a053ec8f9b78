package testutil

import (
	"sync"

	"github.com/roach88/thinglink/internal/ir"
)

// Epoch is the first timestamp a DeterministicClock returns:
// 2024-01-01T00:00:00Z in microseconds.
const Epoch ir.Timestamp = 1_704_067_200_000_000

// DefaultStep is the distance between consecutive timestamps (one second).
const DefaultStep ir.Timestamp = 1_000_000

// DeterministicClock is a reproducible sequencer and time source.
//
// Next() returns 1, 2, 3, ... and Now() returns Epoch, Epoch+step, ...
// Setting the step to 0 freezes time, which is how tests produce equal
// timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	seq  int64
	now  ir.Timestamp
	step ir.Timestamp
}

// NewDeterministicClock creates a clock at seq 0 and time Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{now: Epoch, step: DefaultStep}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Now returns the current timestamp, then advances it by the step.
func (c *DeterministicClock) Now() ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now
	c.now += c.step
	return ts
}

// SetStep changes how far Now advances per call. 0 freezes time.
func (c *DeterministicClock) SetStep(step ir.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}

// Reset returns the clock to seq 0, time Epoch and the default step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.now = Epoch
	c.step = DefaultStep
}
