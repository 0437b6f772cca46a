package agreement

import "time"

// SystemClock reads wall-clock time in unix seconds.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// SimClock is a manually advanced clock for tests of time-window
// preconditions.
type SimClock struct {
	T uint64
}

func (c *SimClock) Now() uint64 {
	return c.T
}

func (c *SimClock) Advance(d uint64) {
	c.T += d
}
