package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Commands      *CommandMetrics  `json:"commands,omitempty"`
	Telemetry     TelemetryMetrics `json:"telemetry"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// CommandMetrics contains inbound command queue statistics.
type CommandMetrics struct {
	Pending int    `json:"pending"`
	Dropped uint64 `json:"dropped"`
	Handled uint64 `json:"handled"`
	Failed  uint64 `json:"failed"`
	Invalid uint64 `json:"invalid"`
}

// TelemetryMetrics contains publish counters.
type TelemetryMetrics struct {
	Published uint64 `json:"published"`
	Skipped   uint64 `json:"skipped"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.session.Snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Telemetry: TelemetryMetrics{
			Published: snap.Published,
			Skipped:   snap.Skipped,
		},
	}

	if s.queue != nil {
		metrics.Commands = &CommandMetrics{
			Pending: s.queue.Pending(),
			Dropped: s.queue.Dropped(),
			Handled: snap.EventsHandled,
			Failed:  snap.EventsFailed,
			Invalid: snap.EventsInvalid,
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
