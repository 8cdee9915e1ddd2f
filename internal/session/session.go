package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudlink/internal/retry"
	"github.com/nerrad567/gray-logic-cloudlink/internal/storage"
	"github.com/nerrad567/gray-logic-cloudlink/internal/watchdog"
)

// Teardown steps reported to the teardown hook, in order.
const (
	teardownChannels  = "channels"
	teardownStateSync = "state_sync"
	teardownIdentity  = "identity"
	teardownReady     = "ready"
)

// Dependencies are the collaborators a Session drives. Registrar,
// Transport and Store are required.
type Dependencies struct {
	Registrar Registrar
	Transport Transport
	Store     Store

	// Optional.
	Watchdog   watchdog.Feeder
	Events     EventHandler
	Recorder   Recorder
	Logger     Logger
	HardwareID func() string
	Now        func() time.Time
	Sleep      retry.Sleeper
}

// Session owns one gateway identity, its device and the gateway config,
// and drives them through registration and the MQTT session.
//
// Thread Safety:
//   - Operations are sequential and must not be called concurrently.
//   - Snapshot is safe to call from any goroutine.
type Session struct {
	registrar Registrar
	transport Transport
	store     Store
	feeder    watchdog.Feeder
	events    EventHandler
	recorder  Recorder
	logger    Logger
	hwID      func() string
	now       func() time.Time
	sleep     retry.Sleeper

	gatewayDefaults config.GatewayConfig
	deviceDefaults  config.DeviceConfig
	features        config.FeaturesConfig
	profile         string
	yieldTimeout    time.Duration
	interval        time.Duration
	maxCycles       int

	httpRetry retry.Policy
	mqttRetry retry.Policy
	topics    mqtt.Topics

	// onTeardown observes Shutdown's steps.
	onTeardown func(step string)

	mu          sync.RWMutex
	initialized bool
	ready       bool
	gateway     cloud.Gateway
	device      cloud.Device
	gwConfig    cloud.GatewayConfig
	telemetry   channel
	command     channel
	state       stateSync
	counters    counters
}

type counters struct {
	published     uint64
	skipped       uint64
	eventsHandled uint64
	eventsFailed  uint64
	eventsInvalid uint64
}

// New creates a session from the loaded configuration. Feature switches
// and the platform profile are read once here.
//
// Parameters:
//   - cfg: Loaded configuration; gateway/device defaults, features, retry
//     budgets and telemetry settings are copied out of it
//   - deps: Collaborators; optional ones fall back to no-op or real-clock
//     implementations
//
// Returns:
//   - *Session: Uninitialised session; call Initialize, then Register
//   - error: If a required collaborator is missing
func New(cfg *config.Config, deps Dependencies) (*Session, error) {
	if deps.Registrar == nil || deps.Transport == nil || deps.Store == nil {
		return nil, errors.New("session: registrar, transport and store are required")
	}

	s := &Session{
		registrar:       deps.Registrar,
		transport:       deps.Transport,
		store:           deps.Store,
		feeder:          deps.Watchdog,
		events:          deps.Events,
		recorder:        deps.Recorder,
		logger:          deps.Logger,
		hwID:            deps.HardwareID,
		now:             deps.Now,
		sleep:           deps.Sleep,
		gatewayDefaults: cfg.Gateway,
		deviceDefaults:  cfg.Device,
		features:        cfg.Features,
		profile:         cfg.Cloud.Profile,
		yieldTimeout:    cfg.MQTT.YieldTimeout,
		interval:        cfg.Telemetry.Interval,
		maxCycles:       cfg.Telemetry.MaxCycles,
		telemetry:       channel{name: "telemetry"},
		command:         channel{name: "command"},
	}
	if s.feeder == nil {
		s.feeder = watchdog.Nop{}
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.hwID == nil {
		s.hwID = cloud.HardwareID
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = retry.SleepContext
	}

	s.httpRetry = retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.HTTPDelay,
		Watchdog:    s.feeder,
		Logger:      s.logger,
		Sleep:       s.sleep,
	}
	s.mqttRetry = s.httpRetry
	s.mqttRetry.Delay = cfg.Retry.MQTTDelay

	return s, nil
}

// Initialize prepares the gateway identity from the configured defaults
// and installs any persisted API key pair on the registration transport.
// The MQTT transport is left untouched until ConnectMQTT. It does not mark
// the session ready.
func (s *Session) Initialize(ctx context.Context) error {
	hwID := s.hwID()

	s.mu.Lock()
	cloud.PrepareGateway(&s.gateway, s.gatewayDefaults, hwID)
	uid := s.gateway.UID
	s.initialized = true
	s.mu.Unlock()

	apiKey, secretKey, err := s.store.RestoreKeys(ctx)
	switch {
	case err == nil:
		s.registrar.SetKeys(apiKey, secretKey)
		s.logger.Debug("restored api keys")
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Warn("restoring api keys", "error", err)
	}

	s.logger.Info("session initialized", "gateway_uid", uid)
	return nil
}

// Register runs the full bootstrap: gateway, then config, then device,
// each step with its own retry budget. On failure everything acquired so
// far is released in reverse order.
func (s *Session) Register(ctx context.Context) error {
	return s.register(ctx, true)
}

// RegisterGateway runs the gateway-only bootstrap: gateway, then config.
func (s *Session) RegisterGateway(ctx context.Context) error {
	return s.register(ctx, false)
}

func (s *Session) register(ctx context.Context, withDevice bool) error {
	s.mu.RLock()
	initialized := s.initialized
	gw := s.gateway
	dev := s.device
	s.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}

	s.feed()
	err := s.httpRetry.Do(ctx, "gateway connect", func(ctx context.Context) error {
		return s.ConnectGateway(ctx, &gw)
	})
	if err != nil {
		s.releaseGateway()
		return fmt.Errorf("registering gateway: %w", err)
	}
	s.mu.Lock()
	s.gateway = gw
	s.mu.Unlock()
	s.logger.Info("gateway connected", "hid", gw.HID)

	s.feed()
	var gwConfig cloud.GatewayConfig
	err = s.httpRetry.Do(ctx, "gateway config", func(ctx context.Context) error {
		var err error
		gwConfig, err = s.fetchConfig(ctx, &gw)
		return err
	})
	if err != nil {
		s.releaseConfig()
		s.releaseGateway()
		return fmt.Errorf("fetching gateway config: %w", err)
	}
	s.mu.Lock()
	s.gwConfig = gwConfig
	s.mu.Unlock()
	s.logger.Info("gateway config fetched", "platform", gwConfig.Platform.String())

	if withDevice {
		s.feed()
		err = s.httpRetry.Do(ctx, "device connect", func(ctx context.Context) error {
			return s.ConnectDevice(ctx, &gw, &dev)
		})
		if err != nil {
			s.releaseDevice()
			s.releaseConfig()
			s.releaseGateway()
			return fmt.Errorf("registering device: %w", err)
		}
		s.mu.Lock()
		s.device = dev
		s.mu.Unlock()
		s.logger.Info("device connected", "hid", dev.HID)
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *Session) releaseGateway() {
	s.mu.Lock()
	s.gateway.Reset()
	s.mu.Unlock()
}

func (s *Session) releaseConfig() {
	s.mu.Lock()
	s.gwConfig.Reset()
	s.mu.Unlock()
}

func (s *Session) releaseDevice() {
	s.mu.Lock()
	s.device.Reset()
	s.mu.Unlock()
}

// Heartbeat tells the cloud the gateway is alive.
func (s *Session) Heartbeat(ctx context.Context) error {
	gw, _, err := s.readyIdentity()
	if err != nil {
		return err
	}
	s.feed()
	return s.registrar.HeartbeatGateway(ctx, &gw)
}

// ReportError posts message against the gateway record. It makes a single
// attempt.
func (s *Session) ReportError(ctx context.Context, message string) error {
	gw, _, err := s.readyIdentity()
	if err != nil {
		return err
	}
	s.feed()
	return s.registrar.ReportGatewayError(ctx, &gw, message)
}

// Shutdown tears the session down in a fixed order: channels, then the
// state sync, then the identities and config, then the ready flag. The
// transport is terminated even when no channel is open.
func (s *Session) Shutdown() error {
	err := s.TerminateMQTT()
	s.teardownStep(teardownChannels)

	s.mu.Lock()
	running := s.state.running
	s.state.stop()
	s.mu.Unlock()
	if running {
		s.teardownStep(teardownStateSync)
	}

	s.mu.Lock()
	s.device.Reset()
	s.gateway.Reset()
	s.gwConfig.Reset()
	s.mu.Unlock()
	s.teardownStep(teardownIdentity)

	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	s.teardownStep(teardownReady)

	s.logger.Info("session shut down")
	if err != nil {
		return fmt.Errorf("terminating transport: %w", err)
	}
	return nil
}

func (s *Session) teardownStep(step string) {
	if s.onTeardown != nil {
		s.onTeardown(step)
	}
}

// Snapshot is a point-in-time copy of the session for diagnostics.
type Snapshot struct {
	Initialized   bool         `json:"initialized"`
	Ready         bool         `json:"ready"`
	Telemetry     ChannelState `json:"telemetry_channel"`
	Command       ChannelState `json:"command_channel"`
	GatewayUID    string       `json:"gateway_uid,omitempty"`
	GatewayHID    string       `json:"gateway_hid,omitempty"`
	DeviceUID     string       `json:"device_uid,omitempty"`
	DeviceHID     string       `json:"device_hid,omitempty"`
	Platform      string       `json:"platform"`
	StateSync     bool         `json:"state_sync"`
	Published     uint64       `json:"published"`
	Skipped       uint64       `json:"skipped"`
	EventsHandled uint64       `json:"events_handled"`
	EventsFailed  uint64       `json:"events_failed"`
	EventsInvalid uint64       `json:"events_invalid"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Initialized:   s.initialized,
		Ready:         s.ready,
		Telemetry:     s.telemetry.state,
		Command:       s.command.state,
		GatewayUID:    s.gateway.UID,
		GatewayHID:    s.gateway.HID,
		DeviceUID:     s.device.UID,
		DeviceHID:     s.device.HID,
		Platform:      s.gwConfig.Platform.String(),
		StateSync:     s.state.running,
		Published:     s.counters.published,
		Skipped:       s.counters.skipped,
		EventsHandled: s.counters.eventsHandled,
		EventsFailed:  s.counters.eventsFailed,
		EventsInvalid: s.counters.eventsInvalid,
	}
}

// readyIdentity returns copies of the gateway and device, or
// ErrNotInitialized before registration completed.
func (s *Session) readyIdentity() (cloud.Gateway, cloud.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return cloud.Gateway{}, cloud.Device{}, ErrNotInitialized
	}
	return s.gateway, s.device, nil
}

func (s *Session) feed() {
	if err := s.feeder.Feed(); err != nil {
		s.logger.Warn("feeding watchdog", "error", err)
	}
}
