package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pageturner-service/internal/config"
	"pageturner-service/internal/hardware"
	"pageturner-service/internal/logger"
	"pageturner-service/internal/types"
)

const step = 10 * time.Millisecond

type mockSensor struct {
	samples []bool
	idx     int
	err     error
}

func (m *mockSensor) Read() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.idx >= len(m.samples) {
		return false, nil
	}
	pressed := m.samples[m.idx]
	m.idx++
	return pressed, nil
}

type mockKeyboard struct {
	connected bool
	sent      []uint8
}

func (m *mockKeyboard) Connected() bool { return m.connected }

func (m *mockKeyboard) SendKey(code uint8) error {
	if !m.connected {
		return errors.New("no host connected")
	}
	m.sent = append(m.sent, code)
	return nil
}

func (m *mockKeyboard) Close() error { return nil }

type mockMessagingClient struct {
	connectErr error
	listening  bool

	states   []types.ServiceState
	gestures []int
	host     []bool
	usbDrive []bool
}

func (m *mockMessagingClient) Connect() error        { return m.connectErr }
func (m *mockMessagingClient) StartListening() error { m.listening = true; return nil }
func (m *mockMessagingClient) Close() error          { return nil }

func (m *mockMessagingClient) PublishServiceState(state types.ServiceState) error {
	m.states = append(m.states, state)
	return nil
}

func (m *mockMessagingClient) PublishGesture(count int) error {
	m.gestures = append(m.gestures, count)
	return nil
}

func (m *mockMessagingClient) SetHostConnected(connected bool) error {
	m.host = append(m.host, connected)
	return nil
}

func (m *mockMessagingClient) SetUsbDriveExported(exported bool) error {
	m.usbDrive = append(m.usbDrive, exported)
	return nil
}

type mockLamp struct {
	activations   int
	deactivations int
}

func (m *mockLamp) Activate() error   { m.activations++; return nil }
func (m *mockLamp) Deactivate() error { m.deactivations++; return nil }

type mockColorLamp struct {
	painted []types.Color
	blanks  int
}

func (m *mockColorLamp) Paint(c types.Color) error {
	m.painted = append(m.painted, c)
	return nil
}

func (m *mockColorLamp) Blank() error { m.blanks++; return nil }

type testRig struct {
	sensor   *mockSensor
	keyboard *mockKeyboard
	pulse    *mockLamp
	pgdn     *mockLamp
	pgup     *mockLamp
	usbDrive *mockLamp
	status   *mockColorLamp
}

func newTestSystem(connected bool) (*System, *testRig) {
	rig := &testRig{
		sensor:   &mockSensor{},
		keyboard: &mockKeyboard{connected: connected},
		pulse:    &mockLamp{},
		pgdn:     &mockLamp{},
		pgup:     &mockLamp{},
		usbDrive: &mockLamp{},
		status:   &mockColorLamp{},
	}
	devices := Devices{
		Sensor:       rig.sensor,
		Keyboard:     rig.keyboard,
		PulseLamp:    rig.pulse,
		PageDownLamp: rig.pgdn,
		PageUpLamp:   rig.pgup,
		UsbDriveLamp: rig.usbDrive,
		StatusLamp:   rig.status,
	}
	cfg := config.Default()
	cfg.PollIntervalMs = 1
	l := logger.NewLogger(nil, logger.LogLevelError)
	s := NewSystem(cfg, devices, l)
	s.readonlyFS = func(string) (bool, error) { return false, nil }
	return s, rig
}

// buildSamples produces total poll samples with the pressed half-open ranges
// [start, end) asserted.
func buildSamples(total int, presses ...[2]int) []bool {
	samples := make([]bool, total)
	for _, p := range presses {
		for i := p[0]; i < p[1]; i++ {
			samples[i] = true
		}
	}
	return samples
}

// pollSamples drives Poll once per sample with the clock advancing in fixed
// steps, the way the scheduler does.
func pollSamples(t *testing.T, s *System, rig *testRig, samples []bool) {
	t.Helper()
	rig.sensor.samples = samples
	base := time.Unix(1000, 0)
	for i := range samples {
		if err := s.Poll(base.Add(time.Duration(i) * step)); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
	}
}

func TestSingleTapPressesPageDown(t *testing.T) {
	s, rig := newTestSystem(true)

	// 100ms press, then enough released samples to close the window.
	pollSamples(t, s, rig, buildSamples(60, [2]int{1, 11}))

	if len(rig.keyboard.sent) != 1 || rig.keyboard.sent[0] != hardware.KeyPageDown {
		t.Errorf("Expected one PageDown keystroke, got %v", rig.keyboard.sent)
	}
	if rig.pgdn.activations != 1 {
		t.Errorf("Expected pgdn lamp lit once, got %d", rig.pgdn.activations)
	}
	if rig.pgup.activations != 0 {
		t.Errorf("Expected pgup lamp untouched, got %d activations", rig.pgup.activations)
	}
	if len(rig.status.painted) != 1 || rig.status.painted[0] != types.ColorSingleTap {
		t.Errorf("Expected one single-tap paint, got %v", rig.status.painted)
	}
}

func TestDoubleTapPressesPageUp(t *testing.T) {
	s, rig := newTestSystem(true)

	pollSamples(t, s, rig, buildSamples(60, [2]int{1, 11}, [2]int{16, 26}))

	if len(rig.keyboard.sent) != 1 || rig.keyboard.sent[0] != hardware.KeyPageUp {
		t.Errorf("Expected one PageUp keystroke, got %v", rig.keyboard.sent)
	}
	if rig.pgup.activations != 1 {
		t.Errorf("Expected pgup lamp lit once, got %d", rig.pgup.activations)
	}
	if rig.pgdn.activations != 0 {
		t.Errorf("Expected pgdn lamp untouched, got %d activations", rig.pgdn.activations)
	}
	if len(rig.status.painted) != 1 || rig.status.painted[0] != types.ColorDoubleTap {
		t.Errorf("Expected one double-tap paint, got %v", rig.status.painted)
	}
}

func TestShortTapIsIgnored(t *testing.T) {
	s, rig := newTestSystem(true)

	// 30ms contact, below the debounce minimum.
	pollSamples(t, s, rig, buildSamples(60, [2]int{1, 4}))

	if len(rig.keyboard.sent) != 0 {
		t.Errorf("Expected no keystrokes, got %v", rig.keyboard.sent)
	}
	if rig.pgdn.activations != 0 || rig.pgup.activations != 0 {
		t.Error("Expected no lamp activity for a bounce")
	}
}

func TestGesturePublished(t *testing.T) {
	s, rig := newTestSystem(true)
	redis := &mockMessagingClient{}
	s.redis = redis
	s.messagingUp = true

	pollSamples(t, s, rig, buildSamples(60, [2]int{1, 11}, [2]int{16, 26}))

	if len(redis.gestures) != 1 || redis.gestures[0] != 2 {
		t.Errorf("Expected gesture count 2 published, got %v", redis.gestures)
	}
}

func TestDisconnectedHostStillFlashesLamps(t *testing.T) {
	s, rig := newTestSystem(false)
	redis := &mockMessagingClient{}
	s.redis = redis
	s.messagingUp = true

	pollSamples(t, s, rig, buildSamples(60, [2]int{1, 11}))

	if len(rig.keyboard.sent) != 0 {
		t.Errorf("Expected no keystrokes without a host, got %v", rig.keyboard.sent)
	}
	if rig.pgdn.activations != 1 {
		t.Errorf("Expected pgdn lamp lit despite missing host, got %d", rig.pgdn.activations)
	}
	if len(redis.gestures) != 1 || redis.gestures[0] != 1 {
		t.Errorf("Expected gesture still published, got %v", redis.gestures)
	}
}

func TestSensorErrorTreatedAsReleased(t *testing.T) {
	s, rig := newTestSystem(true)
	rig.sensor.err = errors.New("adc read failed")

	base := time.Unix(1000, 0)
	for i := 0; i < 60; i++ {
		if err := s.Poll(base.Add(time.Duration(i) * step)); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
	}

	if len(rig.keyboard.sent) != 0 {
		t.Errorf("Expected no keystrokes from a failing sensor, got %v", rig.keyboard.sent)
	}
}

func TestInitLightsUsbDriveLampWhenExported(t *testing.T) {
	s, rig := newTestSystem(true)
	redis := &mockMessagingClient{}
	s.redis = redis
	s.messagingUp = true
	s.readonlyFS = func(string) (bool, error) { return true, nil }

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if rig.usbDrive.activations != 1 {
		t.Errorf("Expected usb-drive lamp lit, got %d activations", rig.usbDrive.activations)
	}
	if rig.pulse.activations != 1 {
		t.Errorf("Expected heartbeat lamp started, got %d activations", rig.pulse.activations)
	}
	if len(redis.usbDrive) != 1 || !redis.usbDrive[0] {
		t.Errorf("Expected usb-drive export published, got %v", redis.usbDrive)
	}
	if len(redis.host) != 1 || !redis.host[0] {
		t.Errorf("Expected host connection published, got %v", redis.host)
	}
	if len(redis.states) != 1 || redis.states[0] != types.StateRunning {
		t.Errorf("Expected running state published, got %v", redis.states)
	}
	// Connected host flashes the page lamps once at startup.
	if rig.pgdn.activations != 1 || rig.pgup.activations != 1 {
		t.Error("Expected page lamps flashed at startup")
	}
}

func TestInitWithoutHostLeavesPageLampsDark(t *testing.T) {
	s, rig := newTestSystem(false)
	redis := &mockMessagingClient{}
	s.redis = redis
	s.messagingUp = true

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if rig.pgdn.activations != 0 || rig.pgup.activations != 0 {
		t.Error("Expected page lamps dark without a host")
	}
	if rig.usbDrive.activations != 0 {
		t.Errorf("Expected usb-drive lamp dark, got %d activations", rig.usbDrive.activations)
	}
	if len(redis.host) != 1 || redis.host[0] {
		t.Errorf("Expected host reported disconnected, got %v", redis.host)
	}
}

func TestLampCommands(t *testing.T) {
	s, rig := newTestSystem(true)
	now := time.Unix(1000, 0)

	if err := s.HandleLampCommand("test"); err != nil {
		t.Fatalf("HandleLampCommand failed: %v", err)
	}
	if err := s.Poll(now); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	if rig.pgdn.activations != 1 || rig.pgup.activations != 1 || rig.usbDrive.activations != 1 {
		t.Error("Expected all indicator lamps lit by the test command")
	}
	white := types.Color{R: 255, G: 255, B: 255}
	if len(rig.status.painted) != 1 || rig.status.painted[0] != white {
		t.Errorf("Expected status LED painted white, got %v", rig.status.painted)
	}

	if err := s.HandleLampCommand("off"); err != nil {
		t.Fatalf("HandleLampCommand failed: %v", err)
	}
	if err := s.Poll(now.Add(step)); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	if rig.pgdn.deactivations != 1 || rig.pgup.deactivations != 1 || rig.usbDrive.deactivations != 1 {
		t.Error("Expected all indicator lamps cleared by the off command")
	}
	if rig.status.blanks == 0 {
		t.Error("Expected status LED blanked by the off command")
	}
}

func TestLampCommandQueueDropsWhenFull(t *testing.T) {
	s, _ := newTestSystem(true)

	for i := 0; i < 10; i++ {
		if err := s.HandleLampCommand("test"); err != nil {
			t.Fatalf("HandleLampCommand failed: %v", err)
		}
	}
}

func TestRunOfflineWhenMessagingUnavailable(t *testing.T) {
	s, _ := newTestSystem(true)
	redis := &mockMessagingClient{connectErr: errors.New("connection refused")}
	s.SetMessaging(redis)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if redis.listening {
		t.Error("Expected no command listeners without a connection")
	}
	if len(redis.states) != 0 {
		t.Errorf("Expected no states published offline, got %v", redis.states)
	}
}

func TestRunPublishesLifecycleStates(t *testing.T) {
	s, _ := newTestSystem(true)
	redis := &mockMessagingClient{}
	s.SetMessaging(redis)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !redis.listening {
		t.Error("Expected command listeners started")
	}
	if len(redis.states) < 3 {
		t.Fatalf("Expected init, running and stopping states, got %v", redis.states)
	}
	if redis.states[0] != types.StateInit {
		t.Errorf("Expected initializing published first, got %v", redis.states[0])
	}
	if redis.states[1] != types.StateRunning {
		t.Errorf("Expected running published second, got %v", redis.states[1])
	}
	if redis.states[len(redis.states)-1] != types.StateStopping {
		t.Errorf("Expected stopping published last, got %v", redis.states[len(redis.states)-1])
	}
}
