package session

import "sync/atomic"

// Clock is the monotonic logical clock that stamps mutations as they
// enter the log.
//
// Every accepted mutation carries a strictly increasing seq number
// from this clock, which makes the append order explicit in the
// records themselves: replaying a serialized log reproduces the exact
// original order with no wall-clock involvement.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although the Session's single-owner design means one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence
// number. Used to resume stamping after a log has been reloaded.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
