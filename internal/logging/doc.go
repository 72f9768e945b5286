// Package logging assembles structured slog loggers used across reelpull.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag lines with job IDs, tiers, and correlation
// IDs. A no-op logger is provided for tests and wiring code that cannot fail.
package logging
