package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
)

type stubSession struct{ snap session.Snapshot }

func (s stubSession) Snapshot() session.Snapshot { return s.snap }

type stubCheck struct{ err error }

func (c stubCheck) HealthCheck(context.Context) error { return c.err }

type stubQueue struct{}

func (stubQueue) Pending() int    { return 2 }
func (stubQueue) Dropped() uint64 { return 1 }

type stubDB struct{}

func (stubDB) Stats() sql.DBStats { return sql.DBStats{OpenConnections: 1, Idle: 1} }

func readySnapshot() session.Snapshot {
	return session.Snapshot{
		Initialized: true,
		Ready:       true,
		Telemetry:   session.ChannelOpen,
		Command:     session.ChannelOpen,
		GatewayHID:  "GW1",
		DeviceHID:   "D1",
		Platform:    "IotConnect",
		Published:   7,
	}
}

// testServer creates a Server over stub collaborators.
func testServer(t *testing.T, snap session.Snapshot, checks map[string]HealthChecker) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:  logging.Discard(),
		Session: stubSession{snap: snap},
		Checks:  checks,
		Queue:   stubQueue{},
		DB:      stubDB{},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Session: stubSession{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without session should fail")
	}
}

// ─── Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		snap       session.Snapshot
		checks     map[string]HealthChecker
		wantCode   int
		wantStatus string
	}{
		{
			name:       "ready and healthy",
			snap:       readySnapshot(),
			checks:     map[string]HealthChecker{"database": stubCheck{}, "mqtt": stubCheck{}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "component down",
			snap:       readySnapshot(),
			checks:     map[string]HealthChecker{"database": stubCheck{}, "mqtt": stubCheck{err: errors.New("not connected")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name:       "not registered",
			snap:       session.Snapshot{Initialized: true},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, testServer(t, tt.snap, tt.checks), "/api/v1/health")

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			resp := decode(t, w)
			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", resp["status"], tt.wantStatus)
			}
			if resp["version"] != "test" {
				t.Errorf("version = %v, want test", resp["version"])
			}
			components, _ := resp["components"].([]any)
			if len(components) != len(tt.checks) {
				t.Errorf("components = %v, want %d", components, len(tt.checks))
			}
		})
	}
}

func TestHealth_ComponentError(t *testing.T) {
	checks := map[string]HealthChecker{"mqtt": stubCheck{err: errors.New("not connected")}}
	w := get(t, testServer(t, readySnapshot(), checks), "/api/v1/health")

	resp := decode(t, w)
	components := resp["components"].([]any)
	c := components[0].(map[string]any)
	if c["name"] != "mqtt" || c["status"] != "error" || c["error"] != "not connected" {
		t.Errorf("component = %v", c)
	}
}

func TestHealth_ContentType(t *testing.T) {
	w := get(t, testServer(t, readySnapshot(), nil), "/api/v1/health")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Session, metrics ──────────────────────────────────────────────

func TestSession(t *testing.T) {
	w := get(t, testServer(t, readySnapshot(), nil), "/api/v1/session")

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}
	resp := decode(t, w)
	if resp["ready"] != true || resp["gateway_hid"] != "GW1" || resp["device_hid"] != "D1" {
		t.Errorf("session = %v", resp)
	}
	if resp["telemetry_channel"] != "open" || resp["command_channel"] != "open" {
		t.Errorf("channels = %v/%v, want open/open", resp["telemetry_channel"], resp["command_channel"])
	}
}

func TestMetrics(t *testing.T) {
	w := get(t, testServer(t, readySnapshot(), nil), "/api/v1/metrics")

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
	if m.Telemetry.Published != 7 {
		t.Errorf("Telemetry.Published = %d, want 7", m.Telemetry.Published)
	}
	if m.Commands == nil || m.Commands.Pending != 2 || m.Commands.Dropped != 1 {
		t.Errorf("Commands = %+v", m.Commands)
	}
	if m.Database == nil || m.Database.OpenConnections != 1 {
		t.Errorf("Database = %+v", m.Database)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	w := get(t, testServer(t, readySnapshot(), nil), "/api/v1/health")

	requestID := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(requestID); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID: %v", requestID, err)
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t, readySnapshot(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, readySnapshot(), nil)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", w.Code)
	}
	if resp := decode(t, w); resp["code"] != ErrCodeInternal {
		t.Errorf("code = %v, want %s", resp["code"], ErrCodeInternal)
	}
}

func TestNotFound(t *testing.T) {
	w := get(t, testServer(t, readySnapshot(), nil), "/api/v1/nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t, readySnapshot(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want 405", w.Code)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestStartClose(t *testing.T) {
	srv := testServer(t, readySnapshot(), nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/session", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /api/v1/session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
