package ipc

import "reelpull/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// SubmitRequest mirrors the HTTP submission payload.
type SubmitRequest = api.SubmitRequest

// SubmitResponse reports the queued or synchronous outcome.
type SubmitResponse = api.SubmitResponse

// Job mirrors the HTTP job DTO.
type Job = api.Job

// JobListRequest filters job listing.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
	CallerID string   `json:"caller_id"`
	Limit    int      `json:"limit"`
}

// JobListResponse contains jobs newest first.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job.
type JobDescribeResponse struct {
	Job Job `json:"job"`
}

// MetadataRequest asks for source metadata.
type MetadataRequest struct {
	URL string `json:"url"`
}

// MetadataResponse mirrors the HTTP metadata payload.
type MetadataResponse = api.MetadataResponse

// SubtitlesRequest lists subtitle tracks.
type SubtitlesRequest struct {
	URL string `json:"url"`
}

// SubtitlesResponse mirrors the HTTP subtitle listing.
type SubtitlesResponse = api.SubtitleListResponse

// SubtitleDownloadRequest mirrors the HTTP subtitle download payload.
type SubtitleDownloadRequest = api.SubtitleDownloadRequest

// SubtitleDownloadResponse reports where the subtitle was written.
type SubtitleDownloadResponse = api.SubtitleDownloadResponse

// DependencyStatus mirrors the HTTP dependency entry.
type DependencyStatus = api.DependencyStatus
