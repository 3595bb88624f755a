// Package hardware holds the Linux bindings behind the gadget runtime:
// the ADC tap sensor, GPIO and sysfs LED lamp outputs, the USB HID gadget
// keyboard and the mass-storage status helpers.
package hardware

import (
	"fmt"
	"os"

	"pageturner-service/internal/logger"
)

// TapValueThreshold is the raw ADC reading below which the pad counts as
// touched. The pad idles near full scale and is pulled down by contact.
const TapValueThreshold = 1000

// ReadAdcValue reads one raw sample from a sysfs IIO ADC channel.
func ReadAdcValue(device string, channel int) (int, error) {
	path := fmt.Sprintf("/sys/bus/iio/devices/%s/in_voltage%d_raw", device, channel)
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("failed reading %s: %w", path, err)
	}

	var value int
	if _, err := fmt.Sscanf(string(data), "%d", &value); err != nil {
		return -1, fmt.Errorf("failed parsing ADC value: %w", err)
	}

	return value, nil
}

// AnalogContactSensor thresholds a sysfs IIO ADC channel into the boolean
// contact signal the classifier consumes.
type AnalogContactSensor struct {
	device    string
	channel   int
	threshold int
	log       *logger.Logger
}

func NewAnalogContactSensor(device string, channel, threshold int, log *logger.Logger) (*AnalogContactSensor, error) {
	if threshold <= 0 {
		threshold = TapValueThreshold
	}
	s := &AnalogContactSensor{
		device:    device,
		channel:   channel,
		threshold: threshold,
		log:       log.WithTag("sensor"),
	}
	// Probe once so a missing ADC fails at startup, not mid-loop.
	if _, err := ReadAdcValue(device, channel); err != nil {
		return nil, err
	}
	s.log.Infof("tap sensor on %s channel %d, threshold %d", device, channel, threshold)
	return s, nil
}

// Read reports whether the pad is currently in contact.
func (s *AnalogContactSensor) Read() (bool, error) {
	value, err := ReadAdcValue(s.device, s.channel)
	if err != nil {
		return false, err
	}
	return value < s.threshold, nil
}
