package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"pageturner-service/internal/logger"
)

// GPIOLamp drives a single-color indicator through a GPIO output line.
// It implements gadget.Output.
type GPIOLamp struct {
	name string
	line *gpiocdev.Line
	log  *logger.Logger
}

// NewGPIOLamp requests the line as an output, initially off.
func NewGPIOLamp(name string, chip, offset int, log *logger.Logger) (*GPIOLamp, error) {
	line, err := gpiocdev.RequestLine(fmt.Sprintf("gpiochip%d", chip), offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("pageturner-service"))
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO line %d on chip %d for lamp %s: %w", offset, chip, name, err)
	}
	l := &GPIOLamp{
		name: name,
		line: line,
		log:  log.WithTag("lamps"),
	}
	l.log.Infof("configured lamp %s: chip=%d, line=%d", name, chip, offset)
	return l, nil
}

func (l *GPIOLamp) set(value int) error {
	if err := l.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set lamp %s=%d: %w", l.name, value, err)
	}
	l.log.Debugf("lamp %s=%d", l.name, value)
	return nil
}

func (l *GPIOLamp) Activate() error {
	return l.set(1)
}

func (l *GPIOLamp) Deactivate() error {
	return l.set(0)
}

// Close turns the lamp off and releases the line.
func (l *GPIOLamp) Close() error {
	if l.line == nil {
		return nil
	}
	if err := l.line.SetValue(0); err != nil {
		l.log.Warnf("failed to clear lamp %s on close: %v", l.name, err)
	}
	err := l.line.Close()
	l.line = nil
	return err
}

// SwitchInput reads a momentary or slide switch on a GPIO input line with
// the internal pull-up enabled; engaging the switch shorts the line to
// ground, so the engaged state reads as a low level.
type SwitchInput struct {
	name string
	line *gpiocdev.Line
}

func NewSwitchInput(name string, chip, offset int) (*SwitchInput, error) {
	line, err := gpiocdev.RequestLine(fmt.Sprintf("gpiochip%d", chip), offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("pageturner-service"))
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO line %d on chip %d for switch %s: %w", offset, chip, name, err)
	}
	return &SwitchInput{name: name, line: line}, nil
}

// Engaged reports whether the switch is closed (line pulled low).
func (s *SwitchInput) Engaged() (bool, error) {
	v, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read switch %s: %w", s.name, err)
	}
	return v == 0, nil
}

func (s *SwitchInput) Close() error {
	if s.line == nil {
		return nil
	}
	err := s.line.Close()
	s.line = nil
	return err
}
