// Package progress tracks how far a sweep has got: the processed counter,
// the run clock, per-resolver timeout tallies and the live rate monitor.
// Everything here is safe for concurrent use.
package progress

import (
	"time"

	"go.uber.org/atomic"
)

// Counter counts completed lookups.
type Counter struct {
	n atomic.Uint64
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 { return c.n.Inc() }

// Load returns the current value.
func (c *Counter) Load() uint64 { return c.n.Load() }

// Ledger keeps one timeout counter per resolver, indexed by pool position.
type Ledger struct {
	counts []atomic.Uint64
}

// NewLedger returns a ledger with n zeroed counters.
func NewLedger(n int) *Ledger {
	return &Ledger{counts: make([]atomic.Uint64, n)}
}

// Inc records a timeout against resolver i and returns its new tally.
func (l *Ledger) Inc(i int) uint64 { return l.counts[i].Inc() }

// Snapshot returns every tally, by resolver position.
func (l *Ledger) Snapshot() []uint64 {
	out := make([]uint64, len(l.counts))
	for i := range l.counts {
		out[i] = l.counts[i].Load()
	}
	return out
}

// Total returns the sum of all tallies.
func (l *Ledger) Total() uint64 {
	var sum uint64
	for i := range l.counts {
		sum += l.counts[i].Load()
	}
	return sum
}

// Clock is the run clock. It is captured once and never reset.
type Clock struct {
	start time.Time
}

// StartClock starts a clock now.
func StartClock() Clock { return Clock{start: time.Now()} }

// Started returns the wall-clock start time.
func (c Clock) Started() time.Time { return c.start }

// Elapsed returns the monotonic time since the clock started.
func (c Clock) Elapsed() time.Duration { return time.Since(c.start) }

// Rate returns n per second of elapsed time, or 0 before any time has passed.
func (c Clock) Rate(n uint64) float64 {
	return PerSecond(n, c.Elapsed())
}

// PerSecond returns n per second over d, or 0 when d is not positive.
func PerSecond(n uint64, d time.Duration) float64 {
	secs := d.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(n) / secs
}
