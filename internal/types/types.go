package types

type ServiceState string

const (
	StateInit     ServiceState = "initializing"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
)

// Color is an RGB triple as painted onto the status LED.
type Color struct {
	R uint8
	G uint8
	B uint8
}

var (
	ColorSingleTap = Color{R: 255}
	ColorDoubleTap = Color{G: 255}
)
