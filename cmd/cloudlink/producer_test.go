package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
)

func TestSystemProducer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadavg")
	if err := os.WriteFile(path, []byte("0.42 0.30 0.20 1/100 1234\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := newSystemProducer()
	p.loadPath = path

	r, outcome := p.Produce(context.Background())
	if outcome != session.Ready {
		t.Fatalf("outcome = %v, want Ready", outcome)
	}
	if r["load1"] != 0.42 {
		t.Errorf("load1 = %v, want 0.42", r["load1"])
	}
	for _, key := range []string{"uptime", "goroutines", "heapMB"} {
		if _, ok := r[key]; !ok {
			t.Errorf("reading missing %q", key)
		}
	}
}

func TestSystemProducer_NoLoadAverage(t *testing.T) {
	p := newSystemProducer()
	p.loadPath = filepath.Join(t.TempDir(), "missing")

	r, _ := p.Produce(context.Background())
	if _, ok := r["load1"]; ok {
		t.Error("load1 present without a load average source")
	}
}

func TestSystemProducer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, outcome := newSystemProducer().Produce(ctx); outcome != session.Skip {
		t.Errorf("outcome = %v, want Skip", outcome)
	}
}
