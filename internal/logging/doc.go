// Package logging provides structured logging for sockserve.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the engine and the concrete servers built on it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Engine state transitions, per-connection hook traffic
//   - Info: Server bound/ready/stopped, connection accepted/closed
//   - Warn: Recoverable problems (post-accept failures, handler errors)
//   - Error: Fatal accept errors, startup failures
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Server listening",
//	    zap.String("server", "echo"),
//	    zap.String("addr", "127.0.0.1:7007"),
//	)
//
// Server lifecycle events go through LogServerEvent:
//
//	logging.LogServerEvent("echo", "ready", zap.Int("active", 2))
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// With an empty level the SOCKSERVE_LOG_LEVEL environment variable is
// consulted; if that is empty too, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
