// Gray Logic Cloudlink - gateway cloud connectivity
//
// Cloudlink registers this gateway and its device with the cloud, opens the
// MQTT telemetry and command channels and publishes system readings until
// stopped. Identities and API keys persist in SQLite across reboots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-cloudlink/migrations"

	"github.com/nerrad567/gray-logic-cloudlink/internal/api"
	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
	"github.com/nerrad567/gray-logic-cloudlink/internal/storage"
	"github.com/nerrad567/gray-logic-cloudlink/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// resetIdentity forgets the persisted identities and API keys before
// starting, so the gateway registers afresh.
var resetIdentity = flag.Bool("reset-identity", false, "forget stored identities and API keys before registering")

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx)
	result := session.ResultOf(err)
	if result.ExitCode() != 0 {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", result, err)
	}
	cancel()
	os.Exit(result.ExitCode())
}

// run wires the collaborators and drives the session until the context
// ends or the session reports a terminal result.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Cloudlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	store := storage.NewSQLiteStore(db.DB)
	if *resetIdentity {
		if clearErr := store.Clear(ctx); clearErr != nil {
			return fmt.Errorf("resetting identity: %w", clearErr)
		}
		log.Warn("stored identities and API keys cleared")
	}

	var feeder watchdog.Feeder = watchdog.Nop{}
	if cfg.Watchdog.Enabled {
		wd, wdErr := watchdog.Open(cfg.Watchdog.Device)
		if wdErr != nil {
			return fmt.Errorf("opening watchdog: %w", wdErr)
		}
		defer func() {
			log.Info("closing watchdog", "feeds", wd.Feeds())
			if closeErr := wd.Close(); closeErr != nil {
				log.Error("error closing watchdog", "error", closeErr)
			}
		}()
		feeder = wd
	}

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log)

	// The mirror is optional; an unreachable server is logged, not fatal.
	var recorder session.Recorder
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		log.Warn("InfluxDB unavailable, telemetry mirror disabled", "error", err)
	default:
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder = influxClient
	}

	sess, err := session.New(cfg, session.Dependencies{
		Registrar: cloud.NewClient(cfg.Cloud),
		Transport: mqttClient,
		Store:     store,
		Watchdog:  feeder,
		Events:    commandLogger{log: log},
		Recorder:  recorder,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		if shutdownErr := sess.Shutdown(); shutdownErr != nil {
			log.Warn("session shutdown", "error", shutdownErr)
		}
	}()

	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{"database": db, "mqtt": mqttClient}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		srv, srvErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Session: sess,
			Checks:  checks,
			Queue:   mqttClient,
			DB:      db.DB,
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	err = serve(ctx, sess, newSystemProducer(), log)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Info("shutdown signal received")
		return nil
	}
	if session.ResultOf(err).ExitCode() != 0 {
		reportCtx, cancel := context.WithTimeout(context.Background(), cfg.Cloud.RequestTimeout)
		if reportErr := sess.ReportError(reportCtx, err.Error()); reportErr != nil {
			log.Debug("error not reported to cloud", "error", reportErr)
		}
		cancel()
	}
	return err
}

// serve registers, connects and runs the telemetry loop, servicing
// commands whenever the loop reports one pending.
func serve(ctx context.Context, sess *session.Session, p session.Producer, log *logging.Logger) error {
	if err := sess.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	if err := sess.Register(ctx); err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	snap := sess.Snapshot()
	log.Info("registered",
		"gateway_hid", snap.GatewayHID,
		"device_hid", snap.DeviceHID,
		"platform", snap.Platform,
	)

	if err := sess.ConnectMQTT(ctx); err != nil {
		return fmt.Errorf("connecting MQTT: %w", err)
	}
	log.Info("MQTT session open")

	for {
		err := sess.RunTelemetryLoop(ctx, p)
		if !errors.Is(err, session.ErrEventReceived) {
			return err
		}
		if pollErr := sess.PollForEvent(ctx); pollErr != nil && !errors.Is(pollErr, session.ErrEventReceived) {
			return pollErr
		}
	}
}

// loadConfig reads the config file, falling back to built-in defaults
// when no file exists.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("config file not found, using defaults", "path", path)
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Uses CLOUDLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLOUDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// commandLogger acknowledges every command after logging it. Device state
// requests are handled by the session itself.
type commandLogger struct {
	log *logging.Logger
}

func (c commandLogger) HandleEvent(_ context.Context, ev cloud.Event) error {
	c.log.Info("command received", "event", ev.Name, "event_hid", ev.HID, "encrypted", ev.Encrypted)
	return nil
}
