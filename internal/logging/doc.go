// Package logging assembles structured slog loggers and formatting helpers used
// across squash.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and can tee info, warn and error records to an event publisher so
// CLI and IPC listeners see the same log stream. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
