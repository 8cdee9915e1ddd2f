package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementTelemetry is the measurement every mirrored reading is written to.
const MeasurementTelemetry = "device_telemetry"

// RecordTelemetry mirrors one published reading. Only numeric and boolean
// values become fields; a reading with none is skipped. The write is
// non-blocking.
//
// Example:
//
//	client.RecordTelemetry(deviceHID, map[string]any{"temperature": 21.5}, time.Now())
func (c *Client) RecordTelemetry(deviceHID string, reading map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := telemetryFields(reading)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		MeasurementTelemetry,
		map[string]string{"device_hid": deviceHID},
		fields,
		at,
	)
	c.writeAPI.WritePoint(point)
}

// telemetryFields keeps the values line protocol can store as numbers.
func telemetryFields(reading map[string]any) map[string]any {
	fields := make(map[string]any, len(reading))
	for k, v := range reading {
		switch n := v.(type) {
		case float64, float32, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, bool:
			fields[k] = n
		}
	}
	return fields
}
