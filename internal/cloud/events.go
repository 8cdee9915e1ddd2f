package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Event is a server-to-gateway command delivered on the command channel.
type Event struct {
	HID        string          `json:"hid"`
	Name       string          `json:"name"`
	Encrypted  bool            `json:"encrypted"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ParseEvent decodes an inbound command payload. An event must carry a hid
// so it can be acknowledged.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if ev.HID == "" {
		return Event{}, fmt.Errorf("%w: no hid", ErrInvalidEvent)
	}
	return ev, nil
}

func eventPath(hid, outcome string) string {
	return EventsEndpoint + "/" + url.PathEscape(hid) + "/" + outcome
}

// AckEventReceived tells the server the event reached the gateway.
func (c *Client) AckEventReceived(ctx context.Context, eventHID string) error {
	if err := c.do(ctx, http.MethodPut, eventPath(eventHID, "received"), nil, nil); err != nil {
		return fmt.Errorf("event %s received ack: %w", eventHID, err)
	}
	return nil
}

// AckEventSucceeded reports the event was handled.
func (c *Client) AckEventSucceeded(ctx context.Context, eventHID string) error {
	if err := c.do(ctx, http.MethodPut, eventPath(eventHID, "succeeded"), nil, nil); err != nil {
		return fmt.Errorf("event %s succeeded ack: %w", eventHID, err)
	}
	return nil
}

// AckEventFailed reports the event could not be handled.
func (c *Client) AckEventFailed(ctx context.Context, eventHID string, reason string) error {
	body := map[string]string{"error": reason}
	if err := c.do(ctx, http.MethodPut, eventPath(eventHID, "failed"), body, nil); err != nil {
		return fmt.Errorf("event %s failed ack: %w", eventHID, err)
	}
	return nil
}
