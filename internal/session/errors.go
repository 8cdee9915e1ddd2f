package session

import "errors"

// Domain errors for the session. Each terminal workflow error maps to one
// Result via ResultOf.
var (
	// ErrNotInitialized is returned by traffic and state operations invoked
	// before registration completed. No network I/O is attempted.
	ErrNotInitialized = errors.New("session: not initialized")

	// ErrMQTTConnectFailed is returned when the telemetry channel could not
	// be opened within the retry budget.
	ErrMQTTConnectFailed = errors.New("session: mqtt connect failed")

	// ErrMQTTSubscribeFailed is returned when the command channel could not
	// be opened or subscribed within the retry budget.
	ErrMQTTSubscribeFailed = errors.New("session: mqtt subscribe failed")

	// ErrMQTTPublishFailed aborts the telemetry loop.
	ErrMQTTPublishFailed = errors.New("session: mqtt publish failed")

	// ErrTelemetryProducerFailed is returned when the producer reports Fatal.
	ErrTelemetryProducerFailed = errors.New("session: telemetry producer failed")

	// ErrEventReceived hands control back to the caller so it can service
	// the command channel.
	ErrEventReceived = errors.New("session: event received")

	// ErrTestDone ends the telemetry loop after telemetry.max_cycles publishes.
	ErrTestDone = errors.New("session: test done")

	// ErrChannelAlreadyOpen is returned when opening a channel that is not Closed.
	ErrChannelAlreadyOpen = errors.New("session: channel already open")

	// ErrChannelNotOpen is returned when closing a channel that is not Open.
	ErrChannelNotOpen = errors.New("session: channel not open")

	// ErrEventsDisabled is returned by command channel operations when
	// features.events is off.
	ErrEventsDisabled = errors.New("session: events disabled")

	// ErrInvalidTransition indicates a channel state change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("session: invalid channel transition")
)
