// Package logging provides structured logging for the PoolDose service.
//
// It wraps log/slog so every entry carries the service name and version.
// Output is JSON by default and text for development.
//
// Logging is configured via the logging section:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("connected", "device", static.DeviceID)
//
// Never log WiFi keys, tokens or passwords; pooldose.StaticValues and
// config.Config mask them in their String methods.
package logging
