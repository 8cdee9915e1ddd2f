// Package mqtt provides the broker connectivity behind the telemetry and
// command channels.
//
// One Client (one paho connection) carries both logical channels: telemetry
// publishes and the command subscription. The package deliberately does
// less than a general-purpose client:
//   - no automatic reconnect; the session's retry policy decides
//   - no message callbacks; inbound messages go to a bounded queue that the
//     owner inspects with Yield and consumes with Drain
//   - Disconnect keeps subscriptions and queued messages for inspection,
//     Terminate releases them
//
// # Topics
//
//	krs.tel.gts.<gateway hid>   telemetry, gateway to server
//	krs.cmd.stg.<gateway hid>   commands and events, server to gateway
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Terminate()
//
//	err := client.Publish(ctx, mqtt.Topics{}.Telemetry(gatewayHID), payload)
package mqtt
