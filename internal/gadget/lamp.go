package gadget

import (
	"time"

	"pageturner-service/internal/logger"
	"pageturner-service/internal/types"
)

// Output is the capability a Lamp drives: assert and clear some visible
// effect. Implementations live in internal/hardware; tests inject fakes.
type Output interface {
	Activate() error
	Deactivate() error
}

// ColorOutput is the capability behind a ColorLamp.
type ColorOutput interface {
	Paint(c types.Color) error
	Blank() error
}

// Lamp is a two-state timed output. OnFor and OffFor arm an automatic
// reverse transition when entering the corresponding state; a zero duration
// means "hold until commanded". At most one deadline is armed at a time.
//
// TurnOn on an already-lit lamp intentionally re-applies the effect and
// re-arms the hold deadline, so a fresh gesture extends the hold.
type Lamp struct {
	out    Output
	onFor  time.Duration
	offFor time.Duration

	isOn  bool
	offAt time.Time // zero = no scheduled turn-off
	onAt  time.Time // zero = no scheduled turn-on

	log *logger.Logger
}

// Update fires a due deadline, if any. Calling it when nothing is due is a
// no-op, so the registry can call it every iteration.
func (l *Lamp) Update(now time.Time) {
	if l.isOn {
		if !l.offAt.IsZero() && !now.Before(l.offAt) {
			l.TurnOff(now)
		}
		return
	}
	if !l.onAt.IsZero() && !now.Before(l.onAt) {
		l.TurnOn(now)
	}
}

// TurnOn applies the activation effect and arms the turn-off deadline when a
// hold duration is configured.
func (l *Lamp) TurnOn(now time.Time) {
	if err := l.out.Activate(); err != nil {
		l.log.Warnf("lamp activate: %v", err)
	}
	l.isOn = true
	l.onAt = time.Time{}
	if l.onFor > 0 {
		l.offAt = now.Add(l.onFor)
	} else {
		l.offAt = time.Time{}
	}
}

// TurnOff applies the deactivation effect and arms the turn-on deadline when
// an off duration is configured (a self-reverting lamp pulses forever).
func (l *Lamp) TurnOff(now time.Time) {
	if err := l.out.Deactivate(); err != nil {
		l.log.Warnf("lamp deactivate: %v", err)
	}
	l.isOn = false
	l.offAt = time.Time{}
	if l.offFor > 0 {
		l.onAt = now.Add(l.offFor)
	} else {
		l.onAt = time.Time{}
	}
}

// IsOn reports the current state.
func (l *Lamp) IsOn() bool {
	return l.isOn
}

// colorOutputAdapter turns a ColorOutput into an Output carrying the color
// to paint at the next activation edge. Until a color is set, activation is
// a no-op (the LED stays dark, same as the deactivated state).
type colorOutputAdapter struct {
	out      ColorOutput
	color    types.Color
	hasColor bool
}

func (a *colorOutputAdapter) Activate() error {
	if !a.hasColor {
		return nil
	}
	return a.out.Paint(a.color)
}

func (a *colorOutputAdapter) Deactivate() error {
	return a.out.Blank()
}

// ColorLamp is a Lamp whose activation effect paints a settable color.
// Setting the color takes effect on the next activation edge, never
// mid-hold.
type ColorLamp struct {
	*Lamp
	adapter *colorOutputAdapter
}

// SetColor selects the color painted at the next TurnOn.
func (cl *ColorLamp) SetColor(c types.Color) {
	cl.adapter.color = c
	cl.adapter.hasColor = true
}
