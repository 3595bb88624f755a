package core

import (
	"pageturner-service/internal/types"
)

// ContactSensor is the raw thresholded tap input. The sensor owns the
// threshold; the system only sees a boolean.
type ContactSensor interface {
	Read() (bool, error)
}

// Keyboard is the host-facing keystroke channel. SendKey is best-effort:
// with no connected host the keystroke is dropped silently.
type Keyboard interface {
	Connected() bool
	SendKey(code uint8) error
	Close() error
}

// MessagingClient defines the Redis operations the System needs. The device
// must keep working when messaging is down, so every method here is treated
// as best-effort by the caller.
type MessagingClient interface {
	Connect() error
	StartListening() error
	Close() error

	PublishServiceState(state types.ServiceState) error
	PublishGesture(count int) error
	SetHostConnected(connected bool) error
	SetUsbDriveExported(exported bool) error
}
