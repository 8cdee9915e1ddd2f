// Package influxdb mirrors published telemetry into a local InfluxDB bucket.
//
// It wraps the official influxdb-client-go v2 library. The mirror is
// optional: when influxdb.enabled is false Connect returns ErrDisabled and
// the session runs without it.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordTelemetry(deviceHID, reading, time.Now())
//
// Each reading becomes one point in the device_telemetry measurement,
// tagged with device_hid.
package influxdb
