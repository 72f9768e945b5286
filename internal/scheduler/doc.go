// Package scheduler owns the tier worker pools and the broker connection.
//
// A Scheduler moves between three availability states: unavailable,
// connecting, and available. Pools exist exactly while the scheduler is
// available; a broker error from any pool or from Enqueue tears them down and
// the admission router falls back to direct processing. Load adjustment pauses
// and resumes tiers from the latest loadmon snapshot without touching
// in-flight jobs.
//
// Background loops (load sampling, adjustment, retention sweeps) run in one
// errgroup and stop together in Stop.
package scheduler
