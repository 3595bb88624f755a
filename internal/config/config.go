// Package config loads the service configuration from a TOML file, falling
// back to defaults that match the reference hardware.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// LampPin names a GPIO output for one indicator lamp.
type LampPin struct {
	Chip int `toml:"chip"`
	Line int `toml:"line"`
}

type TapConfig struct {
	AdcDevice  string `toml:"adc_device"`
	AdcChannel int    `toml:"adc_channel"`
	Threshold  int    `toml:"threshold"`
	MinMs      int64  `toml:"min_ms"`
	CaptureMs  int64  `toml:"capture_ms"`
}

type LampsConfig struct {
	Pulse     LampPin `toml:"pulse"`
	PageDown  LampPin `toml:"pgdn"`
	PageUp    LampPin `toml:"pgup"`
	UsbDrive  LampPin `toml:"usb_drive"`
	FlashSecs float64 `toml:"flash_secs"`
	HoldSecs  float64 `toml:"hold_secs"`
}

type StatusConfig struct {
	LedName     string   `toml:"led_name"`
	Brightness  float64  `toml:"brightness"`
	HoldSecs    float64  `toml:"hold_secs"`
	SingleColor [3]uint8 `toml:"single_color"`
	DoubleColor [3]uint8 `toml:"double_color"`
}

type HidConfig struct {
	Device string `toml:"device"`
	Udc    string `toml:"udc"`
}

type RedisConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type UsbDiskConfig struct {
	SwitchChip int `toml:"switch_chip"`
	SwitchLine int `toml:"switch_line"`
}

type Config struct {
	PollIntervalMs int64         `toml:"poll_interval_ms"`
	Tap            TapConfig     `toml:"tap"`
	Lamps          LampsConfig   `toml:"lamps"`
	Status         StatusConfig  `toml:"status"`
	Hid            HidConfig     `toml:"hid"`
	Redis          RedisConfig   `toml:"redis"`
	UsbDisk        UsbDiskConfig `toml:"usbdisk"`
}

// Default returns the configuration for the reference board.
func Default() *Config {
	return &Config{
		PollIntervalMs: 20,
		Tap: TapConfig{
			AdcDevice:  "iio:device0",
			AdcChannel: 0,
			Threshold:  1000,
			MinMs:      50,
			CaptureMs:  500,
		},
		Lamps: LampsConfig{
			Pulse:     LampPin{Chip: 0, Line: 25},
			PageDown:  LampPin{Chip: 0, Line: 2},
			PageUp:    LampPin{Chip: 0, Line: 3},
			UsbDrive:  LampPin{Chip: 0, Line: 8},
			FlashSecs: 0.5,
			HoldSecs:  1.0,
		},
		Status: StatusConfig{
			LedName:     "rgb:status",
			Brightness:  0.1,
			HoldSecs:    1.0,
			SingleColor: [3]uint8{255, 0, 0},
			DoubleColor: [3]uint8{0, 255, 0},
		},
		Hid: HidConfig{
			Device: "/dev/hidg0",
		},
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		UsbDisk: UsbDiskConfig{
			SwitchChip: 0,
			SwitchLine: 7,
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with. Thresholds and
// durations are fixed for the life of the process.
func (c *Config) Validate() error {
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs)
	}
	if c.Tap.MinMs <= 0 {
		return fmt.Errorf("tap.min_ms must be positive, got %d", c.Tap.MinMs)
	}
	if c.Tap.CaptureMs < c.Tap.MinMs {
		return fmt.Errorf("tap.capture_ms (%d) must not be shorter than tap.min_ms (%d)", c.Tap.CaptureMs, c.Tap.MinMs)
	}
	if c.Tap.Threshold <= 0 {
		return fmt.Errorf("tap.threshold must be positive, got %d", c.Tap.Threshold)
	}
	if c.Status.Brightness < 0 || c.Status.Brightness > 1 {
		return fmt.Errorf("status.brightness must be in [0,1], got %v", c.Status.Brightness)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) MinTapDuration() time.Duration {
	return time.Duration(c.Tap.MinMs) * time.Millisecond
}

func (c *Config) CaptureWindow() time.Duration {
	return time.Duration(c.Tap.CaptureMs) * time.Millisecond
}

func secsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func (c *Config) LampFlash() time.Duration { return secsToDuration(c.Lamps.FlashSecs) }
func (c *Config) LampHold() time.Duration  { return secsToDuration(c.Lamps.HoldSecs) }
func (c *Config) StatusHold() time.Duration {
	return secsToDuration(c.Status.HoldSecs)
}
