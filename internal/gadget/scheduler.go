package gadget

import (
	"context"
	"fmt"
	"time"

	"pageturner-service/internal/logger"
)

// DefaultInterval is the control loop period.
const DefaultInterval = 20 * time.Millisecond

// Application is the behavior the scheduler drives. Init runs exactly once
// before the loop; Poll runs exactly once per iteration with the iteration's
// shared clock reading. Returning an error from either stops the loop; it
// signals a defect, not a recoverable condition.
type Application interface {
	Init() error
	Poll(now time.Time) error
}

// Scheduler is the fixed-interval cooperative loop. It owns the shared clock
// and the lamp registry; each iteration advances the clock once, updates
// every lamp, then polls the application. Everything runs on the calling
// goroutine, with no preemption and no locking.
type Scheduler struct {
	interval time.Duration
	clock    Clock
	registry *Registry
	log      *logger.Logger
}

func NewScheduler(interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		registry: NewRegistry(log),
		log:      log,
	}
}

// Registry exposes the lamp registry so the application can register lamps
// during construction.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Now returns the current shared clock reading.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Run executes the control loop until ctx is cancelled. The loop only exits
// on cancellation or an application error.
func (s *Scheduler) Run(ctx context.Context, app Application) error {
	s.clock.Tick(time.Now())

	if err := app.Init(); err != nil {
		return fmt.Errorf("application init: %w", err)
	}

	s.log.Infof("control loop running (interval %v)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("control loop stopped")
			return nil
		case t := <-ticker.C:
			s.clock.Tick(t)
			now := s.clock.Now()
			s.registry.UpdateAll(now)
			if err := app.Poll(now); err != nil {
				return fmt.Errorf("application poll: %w", err)
			}
		}
	}
}
