package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudlink/internal/storage"
)

// failures makes a fake call fail: n > 0 fails the next n calls, n < 0
// fails every call.
type failures map[string]int

func (f failures) next(name string) error {
	n := f[name]
	if n == 0 {
		return nil
	}
	if n > 0 {
		f[name] = n - 1
	}
	return fmt.Errorf("%s failed", name)
}

// ─── Registrar ─────────────────────────────────────────────────────

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []string
	fail  failures

	gatewayHID string
	deviceHID  string
	config     cloud.GatewayConfig
	deviceInfo cloud.DeviceInfo

	apiKey, secretKey string
	acks              []string
	telemetry         []cloud.Reading
	states            []cloud.DeviceState
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		fail:       failures{},
		gatewayHID: "GW1",
		deviceHID:  "D1",
		config: cloud.GatewayConfig{
			Platform:  cloud.PlatformIoTConnect,
			APIKey:    "AK",
			SecretKey: "SK",
		},
		deviceInfo: cloud.DeviceInfo{HID: "D1", Name: "sensor", Enabled: true},
	}
}

func (f *fakeRegistrar) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.fail.next(name)
}

func (f *fakeRegistrar) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeRegistrar) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRegistrar) SetKeys(apiKey, secretKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey, f.secretKey = apiKey, secretKey
}

func (f *fakeRegistrar) RegisterGateway(_ context.Context, gw *cloud.Gateway) error {
	if err := f.call("RegisterGateway"); err != nil {
		return err
	}
	gw.HID = f.gatewayHID
	return nil
}

func (f *fakeRegistrar) CheckinGateway(context.Context, *cloud.Gateway) error {
	return f.call("CheckinGateway")
}

func (f *fakeRegistrar) UpdateGateway(context.Context, *cloud.Gateway) error {
	return f.call("UpdateGateway")
}

func (f *fakeRegistrar) HeartbeatGateway(context.Context, *cloud.Gateway) error {
	return f.call("HeartbeatGateway")
}

func (f *fakeRegistrar) ReportGatewayError(context.Context, *cloud.Gateway, string) error {
	return f.call("ReportGatewayError")
}

func (f *fakeRegistrar) FetchGatewayConfig(context.Context, *cloud.Gateway, string) (cloud.GatewayConfig, error) {
	if err := f.call("FetchGatewayConfig"); err != nil {
		return cloud.GatewayConfig{}, err
	}
	if f.config.APIKey == "" || f.config.SecretKey == "" {
		return cloud.GatewayConfig{}, cloud.ErrMissingKeys
	}
	return f.config, nil
}

func (f *fakeRegistrar) RegisterDevice(_ context.Context, gw *cloud.Gateway, dev *cloud.Device) error {
	if err := f.call("RegisterDevice"); err != nil {
		return err
	}
	dev.HID = f.deviceHID
	dev.GatewayHID = gw.HID
	dev.Enabled = true
	return nil
}

func (f *fakeRegistrar) UpdateDevice(context.Context, *cloud.Gateway, *cloud.Device) error {
	return f.call("UpdateDevice")
}

func (f *fakeRegistrar) FindDevice(context.Context, string) (cloud.DeviceInfo, error) {
	if err := f.call("FindDevice"); err != nil {
		return cloud.DeviceInfo{}, err
	}
	return f.deviceInfo, nil
}

func (f *fakeRegistrar) RequestDeviceState(context.Context, *cloud.Device) error {
	return f.call("RequestDeviceState")
}

func (f *fakeRegistrar) UpdateDeviceState(_ context.Context, _ *cloud.Device, state cloud.DeviceState) error {
	if err := f.call("UpdateDeviceState"); err != nil {
		return err
	}
	f.mu.Lock()
	f.states = append(f.states, state)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistrar) SendTelemetry(_ context.Context, _ *cloud.Device, r cloud.Reading) error {
	if err := f.call("SendTelemetry"); err != nil {
		return err
	}
	f.mu.Lock()
	f.telemetry = append(f.telemetry, r)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistrar) ack(kind, hid string) error {
	if err := f.call("AckEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	f.acks = append(f.acks, kind+":"+hid)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistrar) AckEventReceived(_ context.Context, hid string) error {
	return f.ack("received", hid)
}

func (f *fakeRegistrar) AckEventSucceeded(_ context.Context, hid string) error {
	return f.ack("succeeded", hid)
}

func (f *fakeRegistrar) AckEventFailed(_ context.Context, hid string, reason string) error {
	return f.ack("failed("+reason+")", hid)
}

// ─── Transport ─────────────────────────────────────────────────────

type published struct {
	topic   string
	payload []byte
}

type fakeTransport struct {
	mu         sync.Mutex
	calls      []string
	fail       failures
	connected  bool
	paused     bool
	queue      []mqtt.Message
	published  []published
	subscribed map[string]bool

	// onCall observes each call as it is made.
	onCall func(name string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: failures{}, subscribed: make(map[string]bool)}
}

func (f *fakeTransport) call(name string) error {
	f.calls = append(f.calls, name)
	if f.onCall != nil {
		f.onCall(name)
	}
	return f.fail.next(name)
}

func (f *fakeTransport) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeTransport) enqueue(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, mqtt.Message{
		Topic:    "krs.cmd.stg.GW1",
		Payload:  []byte(payload),
		Received: time.Now(),
	})
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Connect"); err != nil {
		return err
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return f.call("Disconnect")
}

func (f *fakeTransport) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.queue = nil
	f.subscribed = make(map[string]bool)
	return f.call("Terminate")
}

func (f *fakeTransport) Pause(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

func (f *fakeTransport) Subscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Subscribe"); err != nil {
		return err
	}
	f.subscribed[topic] = true
	return nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, topic)
	return f.call("Unsubscribe")
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Publish"); err != nil {
		return err
	}
	f.published = append(f.published, published{topic: topic, payload: payload})
	return nil
}

func (f *fakeTransport) Yield(context.Context, time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Yield"); err != nil {
		return false, err
	}
	return !f.paused && len(f.queue) > 0, nil
}

func (f *fakeTransport) Drain() []mqtt.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return nil
	}
	out := f.queue
	f.queue = nil
	return out
}

// ─── Store ─────────────────────────────────────────────────────────

type fakeStore struct {
	mu      sync.Mutex
	gateway *cloud.Gateway
	device  *cloud.Device
	keys    *[2]string
	saves   []string
	failKey bool
}

func (f *fakeStore) RestoreGateway(_ context.Context, gw *cloud.Gateway) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gateway == nil {
		return storage.ErrNotFound
	}
	*gw = *f.gateway
	return nil
}

func (f *fakeStore) SaveGateway(_ context.Context, gw *cloud.Gateway) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *gw
	f.gateway = &saved
	f.saves = append(f.saves, "gateway")
	return nil
}

func (f *fakeStore) RestoreDevice(_ context.Context, dev *cloud.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.device == nil {
		return storage.ErrNotFound
	}
	*dev = *f.device
	return nil
}

func (f *fakeStore) SaveDevice(_ context.Context, dev *cloud.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *dev
	f.device = &saved
	f.saves = append(f.saves, "device")
	return nil
}

func (f *fakeStore) SaveKeys(_ context.Context, apiKey, secretKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKey {
		return errors.New("disk full")
	}
	f.keys = &[2]string{apiKey, secretKey}
	f.saves = append(f.saves, "keys")
	return nil
}

func (f *fakeStore) RestoreKeys(context.Context) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		return "", "", storage.ErrNotFound
	}
	return f.keys[0], f.keys[1], nil
}

// ─── Watchdog, recorder ────────────────────────────────────────────

type countingFeeder struct {
	mu    sync.Mutex
	feeds int
}

func (f *countingFeeder) Feed() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds++
	return nil
}

func (f *countingFeeder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds
}

type fakeRecorder struct {
	records []string
}

func (f *fakeRecorder) RecordTelemetry(deviceHID string, _ map[string]any, _ time.Time) {
	f.records = append(f.records, deviceHID)
}

// ─── Harness ───────────────────────────────────────────────────────

type harness struct {
	s        *Session
	reg      *fakeRegistrar
	tr       *fakeTransport
	store    *fakeStore
	feeder   *countingFeeder
	recorder *fakeRecorder

	sleeps  int
	onSleep func()
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			UIDPrefix: "acme", Name: "acme-gateway", OS: "none", Type: "Local",
			SoftwareName: "eos", SoftwareVersion: "0.1", SDKVersion: "1.3.7",
		},
		Device: config.DeviceConfig{Name: "sensor", Type: "thermo", UIDSuffix: "dev"},
		Cloud:  config.CloudConfig{Profile: "generic"},
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			HTTPDelay:   3 * time.Second,
			MQTTDelay:   6 * time.Second,
		},
		MQTT:      config.MQTTConfig{YieldTimeout: time.Millisecond},
		Features:  config.FeaturesConfig{Events: true, SoftwareUpdate: true},
		Telemetry: config.TelemetryConfig{Interval: 5 * time.Second},
	}
}

// newHarness builds a session over fakes. Retry sleeps return immediately
// and are counted.
func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		reg:      newFakeRegistrar(),
		tr:       newFakeTransport(),
		store:    &fakeStore{},
		feeder:   &countingFeeder{},
		recorder: &fakeRecorder{},
	}

	s, err := New(cfg, Dependencies{
		Registrar:  h.reg,
		Transport:  h.tr,
		Store:      h.store,
		Watchdog:   h.feeder,
		Recorder:   h.recorder,
		HardwareID: func() string { return "0a1b2c3d4e5f" },
		Now:        func() time.Time { return time.UnixMilli(1700000000000) },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			h.sleeps++
			if h.onSleep != nil {
				h.onSleep()
			}
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.s = s
	return h
}

// registered returns a harness whose session completed Register.
func registered(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	h := newHarness(t, mutate)
	ctx := context.Background()
	if err := h.s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := h.s.Register(ctx); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.sleeps = 0
	return h
}

// connected returns a registered harness with both channels open.
func connected(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	h := registered(t, mutate)
	if err := h.s.ConnectMQTT(context.Background()); err != nil {
		t.Fatalf("ConnectMQTT() error = %v", err)
	}
	return h
}
