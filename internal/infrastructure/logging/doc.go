// Package logging provides structured logging for the Eve door simulator.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same shape and default fields.
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
//	logger.Info("starting simulator", "interval", cfg.Simulation.Interval)
//	logger.Error("history write failed", "error", err)
//
// Each subsystem gets its own child through Component, and the platform's
// debug flag is applied with SetDebug so every child follows it:
//
//	logger.SetDebug(cfg.Platform.Debug)
//	platformLogger := logger.Component("platform")
//
// Never log broker passwords or InfluxDB tokens.
package logging
