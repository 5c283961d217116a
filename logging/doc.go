// Package logging provides a minimal logging interface and adapters for assistantstream.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that runs, the HTTP server and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StreamLogger with run/component context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	stream := run.Create(ctx, callback, func(o *run.Options) {
//	    o.Logger = logger
//	})
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
