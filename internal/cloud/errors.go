package cloud

import "errors"

// Sentinel errors for cloud API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestFailed is returned for transport failures and non-2xx responses.
	ErrRequestFailed = errors.New("cloud: request failed")

	// ErrInvalidResponse is returned when a 2xx response body cannot be parsed
	// or lacks a required field.
	ErrInvalidResponse = errors.New("cloud: invalid response")

	// ErrMissingKeys is returned when a gateway config response lacks the
	// API key or the secret key.
	ErrMissingKeys = errors.New("cloud: gateway config missing api key or secret key")

	// ErrNoHID is returned when an operation needs a registered identity.
	ErrNoHID = errors.New("cloud: identity has no hid")

	// ErrInvalidEvent is returned when an inbound event cannot be decoded.
	ErrInvalidEvent = errors.New("cloud: invalid event")
)
