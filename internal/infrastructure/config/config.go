package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Cloudlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Device    DeviceConfig    `yaml:"device"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Retry     RetryConfig     `yaml:"retry"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Features  FeaturesConfig  `yaml:"features"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains the defaults used to build the gateway identity
// before the cloud has assigned it a handle.
type GatewayConfig struct {
	// UIDPrefix is prepended to the hardware address to form the stable uid.
	UIDPrefix       string `yaml:"uid_prefix"`
	Name            string `yaml:"name"`
	OS              string `yaml:"os"`
	Type            string `yaml:"type"`
	SoftwareName    string `yaml:"software_name"`
	SoftwareVersion string `yaml:"software_version"`
	SDKVersion      string `yaml:"sdk_version"`
}

// DeviceConfig contains the defaults used to build the device identity.
type DeviceConfig struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	UIDSuffix       string `yaml:"uid_suffix"`
	SoftwareName    string `yaml:"software_name"`
	SoftwareVersion string `yaml:"software_version"`
}

// CloudConfig contains the registration API settings.
type CloudConfig struct {
	// BaseURL is the scheme, host and port of the cloud API.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds every registration round trip.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Profile selects the platform-specific sub-payload parsed from the
	// gateway config response: "generic", "ibm" or "azure".
	Profile string `yaml:"profile"`

	// APIKey and SecretKey seed the transport before the gateway config
	// fetch supplies (and persists) the real pair.
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
}

// RetryConfig contains the bounded retry settings for every workflow step.
type RetryConfig struct {
	// MaxAttempts is the number of attempts a step gets before it fails terminally.
	MaxAttempts int `yaml:"max_attempts"`

	// HTTPDelay is the flat delay between registration API attempts.
	HTTPDelay time.Duration `yaml:"http_delay"`

	// MQTTDelay is the flat delay between MQTT connect/subscribe attempts.
	MQTTDelay time.Duration `yaml:"mqtt_delay"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// YieldTimeout is how long each telemetry cycle waits for inbound traffic.
	YieldTimeout time.Duration `yaml:"yield_timeout"`

	// EventQueueSize bounds the number of inbound command messages held
	// between polls. Messages beyond it are dropped and logged.
	EventQueueSize int `yaml:"event_queue_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// FeaturesConfig selects optional code paths once, at session construction.
type FeaturesConfig struct {
	// Events enables the command/event channel.
	Events bool `yaml:"events"`

	// SoftwareUpdate enables the device update call on restore.
	SoftwareUpdate bool `yaml:"software_update"`

	// CheckDeviceRegistration enables the read-only device lookup on restore
	// when SoftwareUpdate is disabled.
	CheckDeviceRegistration bool `yaml:"check_device_registration"`
}

// TelemetryConfig contains telemetry loop settings.
type TelemetryConfig struct {
	// Interval is the pause between cycles when the event channel is disabled.
	Interval time.Duration `yaml:"interval"`

	// MaxCycles stops the loop with a test-done result after this many
	// publishes. Zero means run until stopped.
	MaxCycles int `yaml:"max_cycles"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the local
// telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains diagnostics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WatchdogConfig contains hardware watchdog settings.
type WatchdogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CLOUDLINK_SECTION_KEY
// For example: CLOUDLINK_CLOUD_BASE_URL, CLOUDLINK_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file is present.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	cfg.normalize()
	return cfg
}

// defaultConfig returns a Config with the values the firmware builds ship with.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			UIDPrefix:       "unknown",
			Name:            "unknown-gateway",
			OS:              "none",
			Type:            "Local",
			SoftwareName:    "eos",
			SoftwareVersion: "0.1",
			SDKVersion:      "1.3.7",
		},
		Device: DeviceConfig{
			Name:      "unknown",
			Type:      "unknown",
			UIDSuffix: "dev",
		},
		Cloud: CloudConfig{
			BaseURL:        "https://api.arrowconnect.io:443",
			RequestTimeout: 10 * time.Second,
			Profile:        "generic",
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			HTTPDelay:   3 * time.Second,
			MQTTDelay:   6 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "mqtt.arrowconnect.io",
				Port:     8883,
				TLS:      true,
				ClientID: "cloudlink",
			},
			QoS:            1,
			YieldTimeout:   time.Second,
			EventQueueSize: 16,
		},
		Features: FeaturesConfig{
			Events:         true,
			SoftwareUpdate: true,
		},
		Telemetry: TelemetryConfig{
			Interval: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/cloudlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Watchdog: WatchdogConfig{
			Device: "/dev/watchdog",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CLOUDLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("CLOUDLINK_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("CLOUDLINK_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("CLOUDLINK_CLOUD_SECRET_KEY"); v != "" {
		cfg.Cloud.SecretKey = v
	}

	// Retry
	if v := os.Getenv("CLOUDLINK_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}

	// MQTT
	if v := os.Getenv("CLOUDLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLOUDLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLOUDLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("CLOUDLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("CLOUDLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// normalize canonicalises values that are matched case-sensitively later.
func (c *Config) normalize() {
	c.Cloud.Profile = strings.ToLower(strings.TrimSpace(c.Cloud.Profile))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.UIDPrefix == "" {
		errs = append(errs, "gateway.uid_prefix is required")
	}
	if c.Device.UIDSuffix == "" {
		errs = append(errs, "device.uid_suffix is required")
	}

	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	switch c.Cloud.Profile {
	case "", "generic", "ibm", "azure":
	default:
		errs = append(errs, "cloud.profile must be generic, ibm or azure")
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Retry.HTTPDelay < 0 || c.Retry.MQTTDelay < 0 {
		errs = append(errs, "retry delays cannot be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.YieldTimeout <= 0 {
		errs = append(errs, "mqtt.yield_timeout must be positive")
	}

	if c.Telemetry.MaxCycles < 0 {
		errs = append(errs, "telemetry.max_cycles cannot be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Watchdog.Enabled && c.Watchdog.Device == "" {
		errs = append(errs, "watchdog.device is required when the watchdog is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
