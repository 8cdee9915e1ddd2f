package session

import "errors"

// Result is the code an embedding application receives for a finished
// operation. It decides whether to restart; the session never restarts
// itself.
type Result int

// Result codes.
const (
	Success Result = iota
	GenericError
	NotInitialized
	MQTTConnectFailed
	MQTTSubscribeFailed
	MQTTPublishFailed
	TelemetryProducerFailed
	EventReceived
	TestDone
)

var resultNames = [...]string{
	Success:                 "success",
	GenericError:            "error",
	NotInitialized:          "not_initialized",
	MQTTConnectFailed:       "mqtt_connect_failed",
	MQTTSubscribeFailed:     "mqtt_subscribe_failed",
	MQTTPublishFailed:       "mqtt_publish_failed",
	TelemetryProducerFailed: "telemetry_producer_failed",
	EventReceived:           "event_received",
	TestDone:                "test_done",
}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "unknown"
	}
	return resultNames[r]
}

// ExitCode is the process exit status for r. Success and TestDone exit 0.
func (r Result) ExitCode() int {
	switch r {
	case Success, TestDone:
		return 0
	default:
		return int(r)
	}
}

// ResultOf maps an error returned by a session operation to its Result.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrNotInitialized):
		return NotInitialized
	case errors.Is(err, ErrMQTTConnectFailed):
		return MQTTConnectFailed
	case errors.Is(err, ErrMQTTSubscribeFailed):
		return MQTTSubscribeFailed
	case errors.Is(err, ErrMQTTPublishFailed):
		return MQTTPublishFailed
	case errors.Is(err, ErrTelemetryProducerFailed):
		return TelemetryProducerFailed
	case errors.Is(err, ErrEventReceived):
		return EventReceived
	case errors.Is(err, ErrTestDone):
		return TestDone
	default:
		return GenericError
	}
}
