// Package clock supplies the logical sequence and wall-clock timestamps
// stamped onto every record and edge.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/roach88/thinglink/internal/ir"
)

// Clock is a monotonic logical clock.
//
// Every record and edge written by this process takes a strictly increasing
// seq from the clock, which keeps content addresses unique even when
// content, author and timestamp coincide.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// New creates a new clock starting at 0.
func New() *Clock {
	return &Clock{}
}

// NewAt creates a clock that resumes after start.
// Used on open to continue from the substrate's highest stored seq.
func NewAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Sequencer hands out strictly increasing sequence numbers.
type Sequencer interface {
	Next() int64
}

// TimeSource yields creation timestamps.
type TimeSource interface {
	Now() ir.Timestamp
}

// SystemTime reads the wall clock.
type SystemTime struct{}

// Now returns the current time in microseconds.
func (SystemTime) Now() ir.Timestamp {
	return FromTime(time.Now())
}

// FromTime converts t to a Timestamp.
func FromTime(t time.Time) ir.Timestamp {
	return ir.Timestamp(t.UnixMicro())
}

// ToTime converts ts back to a UTC time.Time.
func ToTime(ts ir.Timestamp) time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}
