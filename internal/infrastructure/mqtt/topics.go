package mqtt

import "fmt"

// Topic prefixes used by the cloud broker. Segments are dot separated.
const (
	// TopicPrefixTelemetry is the base for gateway-to-server telemetry.
	TopicPrefixTelemetry = "krs.tel.gts"

	// TopicPrefixCommand is the base for server-to-gateway commands.
	TopicPrefixCommand = "krs.cmd.stg"
)

// Topics provides builders for the cloud's MQTT topics.
//
//	topics := mqtt.Topics{}
//	telemetry := topics.Telemetry("a1b2c3")
//	// Returns: "krs.tel.gts.a1b2c3"
type Topics struct{}

// Telemetry returns the topic a gateway publishes device telemetry on.
func (Topics) Telemetry(gatewayHID string) string {
	return fmt.Sprintf("%s.%s", TopicPrefixTelemetry, gatewayHID)
}

// Commands returns the topic a gateway receives commands and events on.
func (Topics) Commands(gatewayHID string) string {
	return fmt.Sprintf("%s.%s", TopicPrefixCommand, gatewayHID)
}
