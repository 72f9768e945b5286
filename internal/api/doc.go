// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates job records, scheduler state, and extraction
// results into transport-friendly DTOs so the CLI and HTTP consumers never
// couple to internal types.
//
// # Key Types
//
// Job: transport representation of a job record with progress, artifact, and
// expiry details.
//
// SubmitRequest/SubmitResponse: the submission payload and its queued or
// synchronous outcome.
//
// DaemonStatus: running state, scheduler availability, per-tier state, host
// load, job counts, and dependency health.
//
// # Converters
//
// FromRecord: jobs.Record -> Job. FromSubmission: admission.Submission ->
// SubmitResponse. FromMetadata: ytdlp.VideoMetadata -> MetadataResponse.
//
// # Design Notes
//
// Field names are snake_case to match the submission payload accepted from
// producers. Timestamps use RFC3339 with milliseconds.
package api
