// Package core wires the gadget runtime to the device hardware: it owns the
// scheduler, registers the lamps, and implements the page-turner application
// polled every iteration.
package core

import (
	"context"
	"time"

	"pageturner-service/internal/config"
	"pageturner-service/internal/gadget"
	"pageturner-service/internal/hardware"
	"pageturner-service/internal/logger"
	"pageturner-service/internal/types"
)

// Devices bundles the hardware capabilities the system drives. Tests inject
// fakes; main constructs the Linux implementations.
type Devices struct {
	Sensor       ContactSensor
	Keyboard     Keyboard
	PulseLamp    gadget.Output
	PageDownLamp gadget.Output
	PageUpLamp   gadget.Output
	UsbDriveLamp gadget.Output
	StatusLamp   gadget.ColorOutput
}

// System is the composition root and the scheduler's application: Init runs
// once before the control loop, Poll once per iteration.
type System struct {
	cfg     *config.Config
	log     *logger.Logger
	devices Devices
	redis   MessagingClient // nil when messaging is disabled

	sched      *gadget.Scheduler
	classifier *gadget.Classifier

	pulseLamp    *gadget.Lamp
	pgdnLamp     *gadget.Lamp
	pgupLamp     *gadget.Lamp
	usbDriveLamp *gadget.Lamp
	statusLamp   *gadget.ColorLamp

	singleColor types.Color
	doubleColor types.Color

	// Commands arrive from the messaging goroutine and are applied inside
	// Poll, keeping every lamp mutation on the control-loop goroutine.
	lampCommands chan string

	// readonlyFS is swappable for tests.
	readonlyFS  func(path string) (bool, error)
	messagingUp bool
}

func NewSystem(cfg *config.Config, devices Devices, l *logger.Logger) *System {
	sched := gadget.NewScheduler(cfg.PollInterval(), l.WithTag("loop"))
	reg := sched.Registry()

	s := &System{
		cfg:          cfg,
		log:          l.WithTag("system"),
		devices:      devices,
		sched:        sched,
		classifier:   gadget.NewClassifier(cfg.MinTapDuration(), cfg.CaptureWindow(), l.WithTag("taps")),
		singleColor:  types.Color{R: cfg.Status.SingleColor[0], G: cfg.Status.SingleColor[1], B: cfg.Status.SingleColor[2]},
		doubleColor:  types.Color{R: cfg.Status.DoubleColor[0], G: cfg.Status.DoubleColor[1], B: cfg.Status.DoubleColor[2]},
		lampCommands: make(chan string, 4),
		readonlyFS:   hardware.FilesystemReadonly,
	}

	s.pulseLamp = reg.NewLamp(devices.PulseLamp, cfg.LampFlash(), cfg.LampFlash())
	s.statusLamp = reg.NewColorLamp(devices.StatusLamp, cfg.StatusHold(), 0)
	s.pgdnLamp = reg.NewLamp(devices.PageDownLamp, cfg.LampHold(), 0)
	s.pgupLamp = reg.NewLamp(devices.PageUpLamp, cfg.LampHold(), 0)
	s.usbDriveLamp = reg.NewLamp(devices.UsbDriveLamp, 0, 0)

	return s
}

// SetMessaging attaches the messaging client. Must be called before Run.
func (s *System) SetMessaging(client MessagingClient) {
	s.redis = client
}

// Run connects messaging (best-effort) and executes the control loop until
// ctx is cancelled.
func (s *System) Run(ctx context.Context) error {
	if s.redis != nil {
		if err := s.redis.Connect(); err != nil {
			s.log.Warnf("messaging unavailable, running offline: %v", err)
		} else {
			s.messagingUp = true
			if err := s.redis.StartListening(); err != nil {
				s.log.Warnf("failed to start command listeners: %v", err)
			}
			if err := s.redis.PublishServiceState(types.StateInit); err != nil {
				s.log.Warnf("failed to publish init state: %v", err)
			}
		}
	}

	err := s.sched.Run(ctx, s)

	if s.messagingUp {
		if perr := s.redis.PublishServiceState(types.StateStopping); perr != nil {
			s.log.Warnf("failed to publish stopping state: %v", perr)
		}
	}
	return err
}

// Init is called by the scheduler exactly once before the loop starts.
func (s *System) Init() error {
	now := s.sched.Now()

	// The heartbeat lamp pulses for the life of the process.
	s.pulseLamp.TurnOn(now)

	// A read-only data partition means it is exported to the host as mass
	// storage; surface that on the usb-drive lamp.
	readonly, err := s.readonlyFS("/")
	if err != nil {
		s.log.Warnf("failed to check mount state: %v", err)
	} else if readonly {
		s.usbDriveLamp.TurnOn(now)
	}
	if s.messagingUp {
		if err := s.redis.SetUsbDriveExported(readonly); err != nil {
			s.log.Warnf("failed to publish usb-drive state: %v", err)
		}
	}

	// The host may still be enumerating at startup; flash the page lamps
	// once if it is already there.
	connected := s.devices.Keyboard.Connected()
	if connected {
		s.pgdnLamp.TurnOn(now)
		s.pgupLamp.TurnOn(now)
	}
	if s.messagingUp {
		if err := s.redis.SetHostConnected(connected); err != nil {
			s.log.Warnf("failed to publish host state: %v", err)
		}
		if err := s.redis.PublishServiceState(types.StateRunning); err != nil {
			s.log.Warnf("failed to publish running state: %v", err)
		}
	}

	s.log.Infof("initialized (host connected: %v, usb drive exported: %v)", connected, readonly)
	return nil
}

// Poll is called by the scheduler once per iteration with the shared clock
// reading for this iteration.
func (s *System) Poll(now time.Time) error {
	s.applyLampCommands(now)

	pressed, err := s.devices.Sensor.Read()
	if err != nil {
		// Treat a failed sample as released so noise cannot invent taps.
		s.log.Warnf("tap sensor read failed: %v", err)
		pressed = false
	}

	if !s.classifier.Observe(now, pressed) {
		return nil
	}

	count := s.classifier.Taps()
	switch count {
	case 1:
		s.log.Infof("single tap: page down")
		s.sendKey(hardware.KeyPageDown)
		s.pgdnLamp.TurnOn(now)
		s.statusLamp.SetColor(s.singleColor)
		s.statusLamp.TurnOn(now)
	case 2:
		s.log.Infof("double tap: page up")
		s.sendKey(hardware.KeyPageUp)
		s.pgupLamp.TurnOn(now)
		s.statusLamp.SetColor(s.doubleColor)
		s.statusLamp.TurnOn(now)
	default:
		return nil
	}

	if s.messagingUp {
		if err := s.redis.PublishGesture(count); err != nil {
			s.log.Warnf("failed to publish gesture: %v", err)
		}
	}
	return nil
}

// sendKey attempts the keystroke; lamp feedback already happened, so a
// missing or failing host only costs the transmission.
func (s *System) sendKey(code uint8) {
	if err := s.devices.Keyboard.SendKey(code); err != nil {
		s.log.Warnf("keystroke failed: %v", err)
	}
}

// HandleLampCommand queues a lamp command from the messaging goroutine for
// the next Poll. Commands are dropped when the queue is full.
func (s *System) HandleLampCommand(cmd string) error {
	select {
	case s.lampCommands <- cmd:
		return nil
	default:
		s.log.Warnf("lamp command queue full, dropping %q", cmd)
		return nil
	}
}

func (s *System) applyLampCommands(now time.Time) {
	for {
		select {
		case cmd := <-s.lampCommands:
			switch cmd {
			case "test":
				s.log.Infof("lamp test requested")
				s.pgdnLamp.TurnOn(now)
				s.pgupLamp.TurnOn(now)
				s.usbDriveLamp.TurnOn(now)
				s.statusLamp.SetColor(types.Color{R: 255, G: 255, B: 255})
				s.statusLamp.TurnOn(now)
			case "off":
				s.log.Infof("lamp off requested")
				s.pgdnLamp.TurnOff(now)
				s.pgupLamp.TurnOff(now)
				s.usbDriveLamp.TurnOff(now)
				s.statusLamp.TurnOff(now)
			}
		default:
			return
		}
	}
}
