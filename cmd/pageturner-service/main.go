package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pageturner-service/internal/config"
	"pageturner-service/internal/core"
	"pageturner-service/internal/hardware"
	"pageturner-service/internal/logger"
	"pageturner-service/internal/messaging"
)

func main() {
	var (
		serviceLogLevel int
		configPath      string
		noRedis         bool
	)
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	flag.StringVar(&configPath, "config", "", "Path to TOML config file (defaults apply when empty)")
	flag.BoolVar(&noRedis, "no-redis", false, "Disable Redis messaging")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	cfg, err := config.Load(configPath)
	if err != nil {
		l.Fatalf("Failed to load config: %v", err)
	}

	l.Infof("Starting page turner service...")

	devices, cleanup, err := openDevices(cfg, l)
	if err != nil {
		l.Fatalf("Failed to initialize hardware: %v", err)
	}
	defer cleanup()

	system := core.NewSystem(cfg, devices, l)

	if !noRedis && cfg.Redis.Host != "" {
		redisClient := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l, messaging.Callbacks{
			LampCallback: system.HandleLampCommand,
		})
		system.SetMessaging(redisClient)
		defer redisClient.Close()
	}

	reportUsbDiskSwitch(cfg, l)

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		l.Infof("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := system.Run(ctx); err != nil {
		l.Fatalf("Control loop failed: %v", err)
	}
	l.Infof("Shutdown complete")
}

// openDevices constructs the Linux hardware bindings. The returned cleanup
// releases every device that was opened.
func openDevices(cfg *config.Config, l *logger.Logger) (core.Devices, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				l.Warnf("cleanup: %v", err)
			}
		}
	}

	fail := func(err error) (core.Devices, func(), error) {
		cleanup()
		return core.Devices{}, func() {}, err
	}

	sensor, err := hardware.NewAnalogContactSensor(cfg.Tap.AdcDevice, cfg.Tap.AdcChannel, cfg.Tap.Threshold, l)
	if err != nil {
		return fail(err)
	}

	newLamp := func(name string, pin config.LampPin) (*hardware.GPIOLamp, error) {
		lamp, err := hardware.NewGPIOLamp(name, pin.Chip, pin.Line, l)
		if err != nil {
			return nil, err
		}
		closers = append(closers, lamp.Close)
		return lamp, nil
	}

	pulse, err := newLamp("pulse", cfg.Lamps.Pulse)
	if err != nil {
		return fail(err)
	}
	pgdn, err := newLamp("pgdn", cfg.Lamps.PageDown)
	if err != nil {
		return fail(err)
	}
	pgup, err := newLamp("pgup", cfg.Lamps.PageUp)
	if err != nil {
		return fail(err)
	}
	usbDrive, err := newLamp("usb-drive", cfg.Lamps.UsbDrive)
	if err != nil {
		return fail(err)
	}

	status, err := hardware.NewSysfsRGBLED(cfg.Status.LedName, cfg.Status.Brightness, l)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, status.Close)

	keyboard := hardware.NewHIDKeyboard(cfg.Hid.Device, cfg.Hid.Udc, l)
	closers = append(closers, keyboard.Close)

	return core.Devices{
		Sensor:       sensor,
		Keyboard:     keyboard,
		PulseLamp:    pulse,
		PageDownLamp: pgdn,
		PageUpLamp:   pgup,
		UsbDriveLamp: usbDrive,
		StatusLamp:   status,
	}, cleanup, nil
}

// reportUsbDiskSwitch logs the mass-storage override switch position. The
// switch is acted on by the boot-time gadget setup script; at runtime it is
// informational only.
func reportUsbDiskSwitch(cfg *config.Config, l *logger.Logger) {
	sw, err := hardware.NewSwitchInput("usb-disk", cfg.UsbDisk.SwitchChip, cfg.UsbDisk.SwitchLine)
	if err != nil {
		l.Warnf("usb-disk switch unavailable: %v", err)
		return
	}
	defer sw.Close()

	engaged, err := sw.Engaged()
	if err != nil {
		l.Warnf("usb-disk switch read failed: %v", err)
		return
	}
	l.Infof("usb-disk switch engaged: %v", engaged)
}
