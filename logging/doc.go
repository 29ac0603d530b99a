// Package logging provides a minimal logging interface and adapters for chatagent.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the agent loop, the tool executor and the front ends use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and ChatLogger built on Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "text", Output: os.Stderr})
//	a, err := agent.New(backend, registry, prompt, func(o *agent.Options) { o.Logger = logger })
//
// Nothing in chatagent logs through a package level logger; every component
// receives its Logger at construction.
package logging
