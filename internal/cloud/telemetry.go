package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Reading is one telemetry sample: field name to value.
type Reading map[string]any

// Telemetry field prefixes. The cloud infers each field's type from them.
const (
	prefixMeta    = "_|"
	prefixFloat   = "f|"
	prefixInteger = "i|"
	prefixString  = "s|"
	prefixBool    = "b|"
)

// EncodeTelemetry serializes r for dev at time at. Values of unsupported
// types are rejected rather than silently dropped.
func EncodeTelemetry(dev *Device, r Reading, at time.Time) ([]byte, error) {
	if !dev.HasHID() {
		return nil, ErrNoHID
	}

	out := make(map[string]any, len(r)+2)
	out[prefixMeta+"deviceHid"] = dev.HID
	out[prefixMeta+"timestamp"] = at.UnixMilli()

	for name, v := range r {
		key, value, err := telemetryField(name, v)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding telemetry: %w", err)
	}
	return b, nil
}

func telemetryField(name string, v any) (string, any, error) {
	switch n := v.(type) {
	case float64, float32:
		return prefixFloat + name, n, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return prefixInteger + name, n, nil
	case string:
		return prefixString + name, n, nil
	case bool:
		return prefixBool + name, n, nil
	default:
		return "", nil, fmt.Errorf("encoding telemetry: field %q has unsupported type %T", name, v)
	}
}

// SendTelemetry posts one reading over HTTP.
func (c *Client) SendTelemetry(ctx context.Context, dev *Device, r Reading) error {
	payload, err := EncodeTelemetry(dev, r, c.now())
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPost, TelemetryEndpoint, json.RawMessage(payload), nil); err != nil {
		return fmt.Errorf("sending telemetry: %w", err)
	}
	return nil
}
