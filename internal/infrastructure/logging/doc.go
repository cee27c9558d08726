// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components receive a named *zap.Logger (see Logger.Component) and attach
// window_id, session_id, site and url fields to every line they emit.
//
// Example Usage:
//
//	logger := logging.NewFromLevel("info", false)
//	wlog := logger.Component("window")
//	wlog.Info("navigation accepted", zap.String("url", "https://example.com/"))
package logging
