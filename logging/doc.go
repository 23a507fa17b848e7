// Package logging provides a minimal logging interface and adapters for agentroute.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, runner and handlers use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - RouteLogger with component/session context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	r, err := router.New(gen, reg, func(o *router.Options) { o.Logger = logger })
package logging
