package session

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
)

// Registrar is the request/response registration transport.
// Implemented by *cloud.Client.
type Registrar interface {
	SetKeys(apiKey, secretKey string)

	RegisterGateway(ctx context.Context, gw *cloud.Gateway) error
	CheckinGateway(ctx context.Context, gw *cloud.Gateway) error
	UpdateGateway(ctx context.Context, gw *cloud.Gateway) error
	HeartbeatGateway(ctx context.Context, gw *cloud.Gateway) error
	ReportGatewayError(ctx context.Context, gw *cloud.Gateway, message string) error
	FetchGatewayConfig(ctx context.Context, gw *cloud.Gateway, profile string) (cloud.GatewayConfig, error)

	RegisterDevice(ctx context.Context, gw *cloud.Gateway, dev *cloud.Device) error
	UpdateDevice(ctx context.Context, gw *cloud.Gateway, dev *cloud.Device) error
	FindDevice(ctx context.Context, hid string) (cloud.DeviceInfo, error)
	RequestDeviceState(ctx context.Context, dev *cloud.Device) error
	UpdateDeviceState(ctx context.Context, dev *cloud.Device, state cloud.DeviceState) error

	SendTelemetry(ctx context.Context, dev *cloud.Device, r cloud.Reading) error

	AckEventReceived(ctx context.Context, eventHID string) error
	AckEventSucceeded(ctx context.Context, eventHID string) error
	AckEventFailed(ctx context.Context, eventHID string, reason string) error
}

// Transport is the single MQTT connection both channels share.
// Implemented by *mqtt.Client.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Terminate() error
	Pause(paused bool)

	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte) error

	// Yield waits up to timeout for inbound traffic and reports whether
	// any is pending, without consuming it.
	Yield(ctx context.Context, timeout time.Duration) (bool, error)
	Drain() []mqtt.Message
}

// Store persists identities and the API key pair across reboots.
// Implemented by *storage.SQLiteStore.
type Store interface {
	RestoreGateway(ctx context.Context, gw *cloud.Gateway) error
	SaveGateway(ctx context.Context, gw *cloud.Gateway) error
	RestoreDevice(ctx context.Context, dev *cloud.Device) error
	SaveDevice(ctx context.Context, dev *cloud.Device) error
	SaveKeys(ctx context.Context, apiKey, secretKey string) error
	RestoreKeys(ctx context.Context) (apiKey, secretKey string, err error)
}

// Recorder mirrors published readings locally. Implemented by *influxdb.Client.
type Recorder interface {
	RecordTelemetry(deviceHID string, reading map[string]any, at time.Time)
}

// EventHandler services commands received on the command channel. A nil
// error acknowledges the event as succeeded; an error acknowledges it as
// failed with the error text.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev cloud.Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev cloud.Event) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev cloud.Event) error {
	return f(ctx, ev)
}

// Outcome is a producer's verdict for one telemetry cycle.
type Outcome int

// Producer outcomes.
const (
	// Ready publishes the returned reading.
	Ready Outcome = iota
	// Skip publishes nothing this cycle.
	Skip
	// Fatal stops the loop with ErrTelemetryProducerFailed. It is also
	// how a caller stops a running loop.
	Fatal
)

// Producer supplies one telemetry reading per cycle. It runs on the
// session's goroutine and must not call back into the session.
type Producer interface {
	Produce(ctx context.Context) (cloud.Reading, Outcome)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (cloud.Reading, Outcome)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context) (cloud.Reading, Outcome) {
	return f(ctx)
}

// Logger is the subset of logging.Logger the session uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
