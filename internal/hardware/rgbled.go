package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"pageturner-service/internal/logger"
	"pageturner-service/internal/types"
)

const ledClassDir = "/sys/class/leds"

// SysfsRGBLED drives a multicolor LED through the Linux LED class
// (leds-group-multicolor or similar): color goes to multi_intensity,
// overall level to brightness. Implements gadget.ColorOutput.
type SysfsRGBLED struct {
	dir        string
	brightness float64 // 0.0-1.0 scale applied to max_brightness
	max        int
	log        *logger.Logger
}

// NewSysfsRGBLED opens the LED class device by name. brightness scales the
// painted level; 1.0 is the device maximum.
func NewSysfsRGBLED(name string, brightness float64, log *logger.Logger) (*SysfsRGBLED, error) {
	dir := ledClassDir + "/" + name

	data, err := os.ReadFile(dir + "/max_brightness")
	if err != nil {
		return nil, fmt.Errorf("failed to open LED %s: %w", name, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed parsing max_brightness for LED %s: %w", name, err)
	}

	if _, err := os.Stat(dir + "/multi_intensity"); err != nil {
		return nil, fmt.Errorf("LED %s is not a multicolor device: %w", name, err)
	}

	if brightness < 0 || brightness > 1 {
		return nil, fmt.Errorf("brightness %v out of range for LED %s", brightness, name)
	}

	l := &SysfsRGBLED{
		dir:        dir,
		brightness: brightness,
		max:        max,
		log:        log.WithTag("rgbled"),
	}
	l.log.Infof("multicolor LED %s ready (max_brightness=%d, scale=%.2f)", name, max, brightness)
	return l, nil
}

func (l *SysfsRGBLED) writeAttr(attr, value string) error {
	if err := os.WriteFile(l.dir+"/"+attr, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed writing LED %s: %w", attr, err)
	}
	return nil
}

// Paint sets the color channels and raises brightness to the configured
// level.
func (l *SysfsRGBLED) Paint(c types.Color) error {
	intensity := fmt.Sprintf("%d %d %d", c.R, c.G, c.B)
	if err := l.writeAttr("multi_intensity", intensity); err != nil {
		return err
	}
	level := int(l.brightness * float64(l.max))
	return l.writeAttr("brightness", strconv.Itoa(level))
}

// Blank turns the LED fully off.
func (l *SysfsRGBLED) Blank() error {
	return l.writeAttr("brightness", "0")
}

// Close blanks the LED; the sysfs files need no further teardown.
func (l *SysfsRGBLED) Close() error {
	return l.Blank()
}
