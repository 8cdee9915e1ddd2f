package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic at the configured QoS, not retained.
//
// Example:
//
//	topic := mqtt.Topics{}.Telemetry(gatewayHID)
//	err := client.Publish(ctx, topic, payload)
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	c.mu.RLock()
	client, connected := c.client, c.connected
	c.mu.RUnlock()
	if !connected || client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, byte(c.cfg.QoS), false, payload)
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
