// Package api implements the local diagnostics HTTP server for Cloudlink.
//
// This package provides:
//   - GET /api/v1/health: aggregated health of the database, MQTT and
//     InfluxDB collaborators
//   - GET /api/v1/session: a snapshot of the cloud session (ready flag,
//     channel states, identities, counters)
//   - GET /api/v1/metrics: Go runtime, event queue and database pool statistics
//   - Middleware stack (request ID, logging, recovery)
//
// The server is read-only and binds to loopback by default. It never
// drives the session; it only reads Snapshot, which is safe from any
// goroutine.
package api
