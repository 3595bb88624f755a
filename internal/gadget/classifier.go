package gadget

import (
	"time"

	"pageturner-service/internal/logger"
)

// Default tap timing, matching the sensor hardware characteristics.
const (
	DefaultMinTapDuration = 50 * time.Millisecond
	DefaultCaptureWindow  = 500 * time.Millisecond
)

// tap is one contact pulse. end stays zero while the sensor is still held.
type tap struct {
	start time.Time
	end   time.Time
}

// Classifier turns a raw per-iteration contact signal into single/double tap
// gestures. Feed it one Observe call per scheduler iteration; when Observe
// reports true the gesture is complete and Taps returns its size.
type Classifier struct {
	minTap time.Duration
	window time.Duration
	taps   []tap
	armed  bool
	log    *logger.Logger
}

// NewClassifier creates a tap classifier. Pulses shorter than minTap are
// discarded as sensor noise; taps starting within window of the first tap
// belong to the same gesture.
func NewClassifier(minTap, window time.Duration, log *logger.Logger) *Classifier {
	return &Classifier{
		minTap: minTap,
		window: window,
		log:    log,
	}
}

// Observe consumes the contact sample for this iteration and reports whether
// a finished gesture is waiting to be classified. It never blocks and it
// never reports true twice for the same gesture (the caller is expected to
// collect it with Taps).
func (c *Classifier) Observe(now time.Time, pressed bool) bool {
	// Startup guard: wait for an initial contact to release before arming,
	// so a sensor held down across boot is never read as a tap.
	if !c.armed {
		if !pressed {
			c.armed = true
		}
		return false
	}

	if pressed {
		// Start a new tap if this is the first one or the previous one
		// already finished.
		if len(c.taps) == 0 || !c.taps[len(c.taps)-1].end.IsZero() {
			c.taps = append(c.taps, tap{start: now})
		}
		// Still in contact, nothing for the caller to do.
		return false
	}

	// Released: finalize the unfinished tap, or drop it if it was too short.
	if n := len(c.taps); n > 0 && c.taps[n-1].end.IsZero() {
		if now.Sub(c.taps[n-1].start) >= c.minTap {
			c.taps[n-1].end = now
		} else {
			c.log.Debugf("short tap ignored (%v)", now.Sub(c.taps[n-1].start))
			c.taps = c.taps[:n-1]
		}
	}

	if len(c.taps) == 0 {
		return false
	}

	// Hold the gesture open until the capture window since the first tap has
	// elapsed; a second tap may still arrive.
	if now.Sub(c.taps[0].start) < c.window {
		return false
	}

	return true
}

// Taps finalizes the pending gesture and returns its tap count, capped at 2:
// three or more taps inside one capture window read as a double tap. The
// pending sequence is cleared.
func (c *Classifier) Taps() int {
	count := len(c.taps)
	if count > 2 {
		count = 2
	}
	c.taps = c.taps[:0]
	return count
}
