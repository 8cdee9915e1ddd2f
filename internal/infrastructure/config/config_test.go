package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
gateway:
  uid_prefix: "acme"
  name: "acme-gateway"
cloud:
  base_url: "http://127.0.0.1:12001"
  profile: "ibm"
retry:
  max_attempts: 3
  http_delay: 1500ms
  mqtt_delay: 4s
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  yield_timeout: 250ms
database:
  path: "/tmp/test.db"
features:
  events: false
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.UIDPrefix != "acme" {
		t.Errorf("Gateway.UIDPrefix = %q, want %q", cfg.Gateway.UIDPrefix, "acme")
	}
	if cfg.Cloud.Profile != "ibm" {
		t.Errorf("Cloud.Profile = %q, want %q", cfg.Cloud.Profile, "ibm")
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.HTTPDelay != 1500*time.Millisecond {
		t.Errorf("Retry.HTTPDelay = %v, want 1.5s", cfg.Retry.HTTPDelay)
	}
	if cfg.Retry.MQTTDelay != 4*time.Second {
		t.Errorf("Retry.MQTTDelay = %v, want 4s", cfg.Retry.MQTTDelay)
	}
	if cfg.MQTT.YieldTimeout != 250*time.Millisecond {
		t.Errorf("MQTT.YieldTimeout = %v, want 250ms", cfg.MQTT.YieldTimeout)
	}
	if cfg.Features.Events {
		t.Error("Features.Events = true, want false")
	}
	// Untouched sections keep their defaults.
	if !cfg.Features.SoftwareUpdate {
		t.Error("Features.SoftwareUpdate = false, want default true")
	}
	if cfg.Device.UIDSuffix != "dev" {
		t.Errorf("Device.UIDSuffix = %q, want %q", cfg.Device.UIDSuffix, "dev")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
retry:
  max_attempts: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "retry.max_attempts") {
		t.Errorf("Load() error = %v, want mention of retry.max_attempts", err)
	}
}

func TestLoad_NormalizesProfile(t *testing.T) {
	content := `
cloud:
  profile: " IBM "
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cloud.Profile != "ibm" {
		t.Errorf("Cloud.Profile = %q, want %q", cfg.Cloud.Profile, "ibm")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing uid prefix", mutate: func(c *Config) { c.Gateway.UIDPrefix = "" }, wantErr: true},
		{name: "missing uid suffix", mutate: func(c *Config) { c.Device.UIDSuffix = "" }, wantErr: true},
		{name: "missing base url", mutate: func(c *Config) { c.Cloud.BaseURL = "" }, wantErr: true},
		{name: "unknown profile", mutate: func(c *Config) { c.Cloud.Profile = "aws" }, wantErr: true},
		{name: "azure profile", mutate: func(c *Config) { c.Cloud.Profile = "azure" }},
		{name: "profile not normalized", mutate: func(c *Config) { c.Cloud.Profile = "Azure" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Retry.MQTTDelay = -time.Second }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid broker port", mutate: func(c *Config) { c.MQTT.Broker.Port = 0 }, wantErr: true},
		{name: "zero yield timeout", mutate: func(c *Config) { c.MQTT.YieldTimeout = 0 }, wantErr: true},
		{name: "negative max cycles", mutate: func(c *Config) { c.Telemetry.MaxCycles = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: true,
		},
		{name: "api disabled ignores port", mutate: func(c *Config) { c.API.Port = 0 }},
		{
			name: "watchdog without device",
			mutate: func(c *Config) {
				c.Watchdog.Enabled = true
				c.Watchdog.Device = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CLOUDLINK_CLOUD_BASE_URL", "http://cloud.example.com:12001")
	t.Setenv("CLOUDLINK_CLOUD_API_KEY", "api-key")
	t.Setenv("CLOUDLINK_CLOUD_SECRET_KEY", "secret-key")
	t.Setenv("CLOUDLINK_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("CLOUDLINK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CLOUDLINK_MQTT_USERNAME", "testuser")
	t.Setenv("CLOUDLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("CLOUDLINK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("CLOUDLINK_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Cloud.BaseURL != "http://cloud.example.com:12001" {
		t.Errorf("Cloud.BaseURL = %q", cfg.Cloud.BaseURL)
	}
	if cfg.Cloud.APIKey != "api-key" || cfg.Cloud.SecretKey != "secret-key" {
		t.Errorf("Cloud keys = %q/%q, want api-key/secret-key", cfg.Cloud.APIKey, cfg.Cloud.SecretKey)
	}
	if cfg.Retry.MaxAttempts != 9 {
		t.Errorf("Retry.MaxAttempts = %d, want 9", cfg.Retry.MaxAttempts)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadInteger(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("CLOUDLINK_RETRY_MAX_ATTEMPTS", "many")

	applyEnvOverrides(cfg)

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want default 5", cfg.Retry.MaxAttempts)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Retry.HTTPDelay != 3*time.Second {
		t.Errorf("defaultConfig Retry.HTTPDelay = %v, want 3s", cfg.Retry.HTTPDelay)
	}
	if cfg.Retry.MQTTDelay != 6*time.Second {
		t.Errorf("defaultConfig Retry.MQTTDelay = %v, want 6s", cfg.Retry.MQTTDelay)
	}
	if cfg.Gateway.Type != "Local" {
		t.Errorf("defaultConfig Gateway.Type = %q, want Local", cfg.Gateway.Type)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.Features.Events {
		t.Error("defaultConfig Features.Events = false, want true")
	}
}
