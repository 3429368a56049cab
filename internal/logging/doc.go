// Package logging assembles structured slog loggers and formatting helpers
// used across hlsmerge.
//
// It owns the console and JSON handlers, fans records out to the optional log
// file through slog-multi, and exposes context helpers so orchestrator code
// tags every line with the batch identifier and the unit being converted.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
