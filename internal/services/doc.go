// Package services defines shared utilities consumed by the job processor and
// the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, tiers, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification into logs and API responses.
//
// Tool integrations live in subpackages (ytdlp) and keep their subprocess
// plumbing behind small Executor interfaces for testing.
package services
