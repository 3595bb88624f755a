package hardware

import (
	"fmt"
	"os"
	"strings"

	"pageturner-service/internal/logger"
)

// HID keyboard usage IDs for the keys the page turner sends.
const (
	KeyPageUp   uint8 = 0x4B
	KeyPageDown uint8 = 0x4E
)

const udcClassDir = "/sys/class/udc"

// HIDKeyboard sends keystrokes through a USB HID gadget keyboard function
// (/dev/hidgN with the 8-byte boot keyboard report layout). The host may be
// absent at startup or disappear at any time; Connected re-checks lazily and
// SendKey drops the keystroke silently when no host is attached.
type HIDKeyboard struct {
	path string
	udc  string
	file *os.File
	log  *logger.Logger
}

// NewHIDKeyboard prepares the keyboard without touching the device yet. udc
// names the UDC whose state gates connection checks; empty auto-detects the
// first controller under /sys/class/udc.
func NewHIDKeyboard(path, udc string, log *logger.Logger) *HIDKeyboard {
	return &HIDKeyboard{
		path: path,
		udc:  udc,
		log:  log.WithTag("hidkbd"),
	}
}

// Connected reports whether the USB host has configured the gadget, opening
// the report device on the first successful check.
func (k *HIDKeyboard) Connected() bool {
	if k.file != nil {
		return true
	}
	if !k.hostConfigured() {
		return false
	}
	f, err := os.OpenFile(k.path, os.O_WRONLY, 0)
	if err != nil {
		k.log.Debugf("HID device not ready: %v", err)
		return false
	}
	k.file = f
	k.log.Infof("USB host connected")
	return true
}

func (k *HIDKeyboard) hostConfigured() bool {
	udc := k.udc
	if udc == "" {
		entries, err := os.ReadDir(udcClassDir)
		if err != nil || len(entries) == 0 {
			return false
		}
		udc = entries[0].Name()
	}
	data, err := os.ReadFile(udcClassDir + "/" + udc + "/state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "configured"
}

// SendKey presses and releases a single key. Without a connected host this
// is a silent no-op: feedback lamps still fire, transmission does not.
func (k *HIDKeyboard) SendKey(code uint8) error {
	if !k.Connected() {
		k.log.Debugf("no USB host, dropping keystroke 0x%02X", code)
		return nil
	}

	press := [8]byte{2: code}
	release := [8]byte{}

	if err := k.writeReport(press[:]); err != nil {
		return fmt.Errorf("failed sending key press: %w", err)
	}
	if err := k.writeReport(release[:]); err != nil {
		return fmt.Errorf("failed sending key release: %w", err)
	}
	return nil
}

func (k *HIDKeyboard) writeReport(report []byte) error {
	if _, err := k.file.Write(report); err != nil {
		// A failed write usually means the host went away; drop the handle
		// so the next SendKey re-checks the link.
		k.file.Close()
		k.file = nil
		k.log.Infof("USB host disconnected")
		return err
	}
	return nil
}

func (k *HIDKeyboard) Close() error {
	if k.file == nil {
		return nil
	}
	err := k.file.Close()
	k.file = nil
	return err
}
