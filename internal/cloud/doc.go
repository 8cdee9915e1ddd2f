// Package cloud holds the cloud-side identity model and the HTTP
// registration transport.
//
// It covers:
//   - Gateway and Device identities and how their defaults and uids are built
//   - Parsing of the gateway config (platform selector, API key pair,
//     optional IBM or Azure profile)
//   - Client: gateway create/checkin/heartbeat/update/find/config, device
//     create/update/find, device state request/update, HTTP telemetry and
//     event acknowledgements
//   - Telemetry payload encoding shared by the HTTP and MQTT paths
//
// A call succeeds only on a 2xx status with a decodable body. Errors wrap
// ErrRequestFailed (transport or status) or ErrInvalidResponse (body).
//
// Usage:
//
//	client := cloud.NewClient(cfg.Cloud)
//	if err := client.RegisterGateway(ctx, &gw); err != nil {
//	    return err
//	}
//	gwCfg, err := client.FetchGatewayConfig(ctx, &gw, cfg.Cloud.Profile)
package cloud
