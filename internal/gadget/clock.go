// Package gadget contains the hardware-free runtime core of the page turner:
// the shared iteration clock, the tap classifier, the timed lamp state
// machine, the lamp registry and the cooperative scheduler that drives them.
//
// Nothing in this package touches GPIO, USB or the OS clock directly. Time
// always arrives as an explicit value, so every device observes the same
// "now" within one scheduler iteration and tests can script arbitrary time
// sequences.
package gadget

import "time"

// Clock holds the single time value shared by all devices during one
// scheduler iteration. The scheduler advances it exactly once per iteration;
// everything else only reads it.
type Clock struct {
	now time.Time
}

// Tick advances the clock. Time never moves backwards: a sample earlier than
// the current reading is ignored.
func (c *Clock) Tick(t time.Time) {
	if t.After(c.now) {
		c.now = t
	}
}

// Now returns the time sampled at the start of the current iteration.
func (c *Clock) Now() time.Time {
	return c.now
}
