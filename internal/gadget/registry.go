package gadget

import (
	"time"

	"pageturner-service/internal/logger"
)

// Registry owns every lamp the application registers and batch-advances them
// once per scheduler iteration, in registration order. Order is irrelevant
// to correctness (lamps are independent) but deterministic for tests.
type Registry struct {
	lamps []*Lamp
	log   *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{log: log}
}

// NewLamp registers a timed lamp over the given output. Zero durations mean
// the corresponding state holds until externally commanded.
func (r *Registry) NewLamp(out Output, onFor, offFor time.Duration) *Lamp {
	l := &Lamp{
		out:    out,
		onFor:  onFor,
		offFor: offFor,
		log:    r.log,
	}
	r.lamps = append(r.lamps, l)
	return l
}

// NewColorLamp registers a color lamp. The color must be set before the
// first TurnOn for the activation to paint anything.
func (r *Registry) NewColorLamp(out ColorOutput, onFor, offFor time.Duration) *ColorLamp {
	adapter := &colorOutputAdapter{out: out}
	return &ColorLamp{
		Lamp:    r.NewLamp(adapter, onFor, offFor),
		adapter: adapter,
	}
}

// UpdateAll advances every registered lamp to now.
func (r *Registry) UpdateAll(now time.Time) {
	for _, l := range r.lamps {
		l.Update(now)
	}
}

// Len returns the number of registered lamps.
func (r *Registry) Len() int {
	return len(r.lamps)
}
