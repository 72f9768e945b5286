// Package jobs defines acquisition requests, their results, and the job
// records that track each request from admission to completion.
//
// Store persists records in SQLite (modernc.org/sqlite, no cgo) with the same
// busy-retry and schema-version handling the daemon has always used. The
// scheduler and processor depend only on the narrow Recorder interface.
package jobs
