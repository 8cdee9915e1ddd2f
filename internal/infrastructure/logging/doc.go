// Package logging provides structured logging for Gray Logic Cloudlink.
//
// This package wraps Go's standard log/slog package so every component logs
// the same way: JSON in production, text while developing, with the service
// name and build version on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("gateway registered", "hid", gw.HID)
//	logger.Warn("retrying step", "step", "gateway.connect", "attempt", 2)
//
// # Security
//
// Never log API keys, secret keys or broker passwords.
package logging
