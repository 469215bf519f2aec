// Package counter provides the kernel's virtual-time tick source: a
// monotonic counter that advances once per dispatched event rather than
// once per wall-clock second, since the simulator's whole point is that
// its outcomes never depend on real time.
package counter

import "fmt"

// Counter is a 64 bit monotonic tick counter.
type Counter struct {
	count uint64
}

// New creates a counter starting at zero.
func New() *Counter {
	return new(Counter)
}

// Reset returns the counter to zero, for replay from the start of a log.
func (c *Counter) Reset() {
	c.count = 0
}

// Tick advances the counter by one and returns the new value, used to
// stamp each dispatched event with a virtual timestamp.
func (c *Counter) Tick() uint64 {
	c.count++
	return c.count
}

// Value returns the current tick without advancing it.
func (c *Counter) Value() uint64 {
	return c.count
}

// String implements fmt.Stringer.
func (c *Counter) String() string {
	return fmt.Sprintf("%d", c.count)
}
