// Package loadmon samples host CPU and memory utilisation and publishes the
// latest reading as an immutable Snapshot.
//
// The Monitor owns two loops: Run samples on the configured interval and
// RunAdjuster hands the current snapshot to an Adjuster (the scheduler) on a
// shorter interval. Both return when their context is cancelled, so they fit
// directly into an errgroup.
package loadmon
