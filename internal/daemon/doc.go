// Package daemon coordinates the long-running reelpull process.
//
// It wires configuration, the job store, the scheduler, and the admission
// router into a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon also serves the HTTP API (status, job submission and
// lookup, metadata, subtitles, and pass-through streaming) and records its
// PID so the CLI can report on it.
//
// Keep orchestration here: extraction, scheduling, and processing live in
// their own packages while the daemon focuses on startup, shutdown, and
// request plumbing.
package daemon
