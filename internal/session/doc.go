// Package session orchestrates a gateway's connection to the cloud.
//
// A Session owns exactly one gateway identity, its device and the gateway
// config. It bootstraps them through the registration transport (restore
// from storage or register, then fetch the config and key pair), then
// multiplexes a telemetry channel and a command channel over one MQTT
// connection.
//
// Every workflow step runs under a flat, bounded retry budget of its own
// (see package retry). Every blocking boundary feeds the watchdog.
//
// Typical use:
//
//	s.Initialize(ctx)
//	s.Register(ctx)
//	s.ConnectMQTT(ctx)
//	for {
//	    err := s.RunTelemetryLoop(ctx, producer)
//	    if errors.Is(err, session.ErrEventReceived) {
//	        err = s.PollForEvent(ctx)
//	    }
//	    ...
//	}
//	s.Shutdown()
//
// Operations return errors; ResultOf maps them to the Result codes the
// embedding application acts on.
package session
