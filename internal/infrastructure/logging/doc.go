// Package logging provides structured logging for the biometric station.
//
// It wraps log/slog so every component logs with the same handler, level
// filter and default fields (service, version, station).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	capLog := logger.Component("capture")
//	capLog.Warn("acquisition failed", "consecutive_failures", 3)
//
// Never log template bytes or raw frames; log sizes and scores instead.
package logging
