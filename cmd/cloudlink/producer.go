package main

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
)

const loadAvgPath = "/proc/loadavg"

// systemProducer reports process and host health as telemetry.
type systemProducer struct {
	start    time.Time
	loadPath string
}

func newSystemProducer() *systemProducer {
	return &systemProducer{start: time.Now(), loadPath: loadAvgPath}
}

// Produce never fails; a missing load average is simply omitted.
func (p *systemProducer) Produce(ctx context.Context) (cloud.Reading, session.Outcome) {
	if ctx.Err() != nil {
		return nil, session.Skip
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r := cloud.Reading{
		"uptime":     int64(time.Since(p.start).Seconds()),
		"goroutines": runtime.NumGoroutine(),
		"heapMB":     float64(mem.HeapAlloc) / 1024 / 1024,
	}
	if load, ok := readLoad(p.loadPath); ok {
		r["load1"] = load
	}
	return r, session.Ready
}

// readLoad returns the one-minute load average.
func readLoad(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
