package flowmeter

import "sync/atomic"

// Counter counts sensor pulses between window closes. One asynchronous
// context increments it (an interrupt handler, a GPIO edge goroutine)
// while the measurement path drains it once per window with Take.
//
// All methods are single atomic operations: they take no locks and
// allocate nothing, so Increment and Add are safe to call from an
// interrupt service routine. On cores without native atomics, TinyGo
// lowers these to brief interrupt-disable brackets.
type Counter struct {
	pulses atomic.Uint32
}

// Increment records one pulse.
func (c *Counter) Increment() {
	c.pulses.Add(1)
}

// Add records n pulses at once. Hosts that receive per-window pulse
// counts over a transport feed them in here instead of pulse by pulse.
func (c *Counter) Add(n uint32) {
	c.pulses.Add(n)
}

// Take atomically snapshots the count and clears it. A pulse racing the
// call lands either in the returned snapshot or in the next window;
// never in both, never in neither.
func (c *Counter) Take() uint32 {
	return c.pulses.Swap(0)
}

// Pending returns the count without clearing it.
func (c *Counter) Pending() uint32 {
	return c.pulses.Load()
}
