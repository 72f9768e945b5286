package api

import (
	"reelpull/internal/jobs"
	"reelpull/internal/services/ytdlp"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job record in a transport-friendly format.
type Job struct {
	ID             string  `json:"id"`
	SourceURL      string  `json:"source_url"`
	FormatSelector string  `json:"format_selector"`
	QualityKey     string  `json:"quality_key,omitempty"`
	CallerID       string  `json:"caller_id,omitempty"`
	Tier           string  `json:"tier"`
	Status         string  `json:"status"`
	Progress       float64 `json:"progress"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	ErrorCode      string  `json:"error_code,omitempty"`
	ArtifactPath   string  `json:"artifact_path,omitempty"`
	FileSizeBytes  int64   `json:"file_size_bytes,omitempty"`
	FileType       string  `json:"file_type,omitempty"`
	ExpiresAt      string  `json:"expires_at,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
	FinishedAt     string  `json:"finished_at,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// SubmitRequest is the submission payload accepted over HTTP and IPC.
type SubmitRequest struct {
	JobID          string      `json:"job_id,omitempty"`
	SourceURL      string      `json:"source_url"`
	FormatSelector string      `json:"format_selector,omitempty"`
	QualityKey     string      `json:"quality_key,omitempty"`
	CallerID       string      `json:"caller_id,omitempty"`
	Policy         jobs.Policy `json:"policy_settings"`
}

// ToRequest converts the payload to a job request.
func (r SubmitRequest) ToRequest() jobs.Request {
	return jobs.Request{
		JobID:          r.JobID,
		SourceURL:      r.SourceURL,
		FormatSelector: r.FormatSelector,
		QualityKey:     r.QualityKey,
		CallerID:       r.CallerID,
		Policy:         r.Policy,
	}
}

// JobResult is the terminal outcome of a directly processed request.
type JobResult struct {
	Status        string `json:"status"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// SubmitResponse reports whether the request was queued or processed.
type SubmitResponse struct {
	JobID                string     `json:"job_id"`
	Queued               bool       `json:"queued"`
	Tier                 string     `json:"tier"`
	EstimatedWaitSeconds int        `json:"estimated_wait_seconds,omitempty"`
	Result               *JobResult `json:"result,omitempty"`
}

// TierStatus mirrors one tier's pool state.
type TierStatus struct {
	Tier        string `json:"tier"`
	Concurrency int    `json:"concurrency"`
	Paused      bool   `json:"paused"`
	Active      int64  `json:"active"`
	Waiting     int64  `json:"waiting"`
}

// LoadStatus is the latest host load reading.
type LoadStatus struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Overloaded    bool    `json:"overloaded"`
	SampledAt     string  `json:"sampled_at,omitempty"`
}

// SchedulerStatus summarizes broker availability and tier pools.
type SchedulerStatus struct {
	Availability string       `json:"availability"`
	LastError    string       `json:"last_error,omitempty"`
	Tiers        []TierStatus `json:"tiers"`
	Load         LoadStatus   `json:"load"`
}

// CheckResult is one preflight outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	DownloadDir  string             `json:"download_dir"`
	Scheduler    SchedulerStatus    `json:"scheduler"`
	JobCounts    map[string]int     `json:"job_counts"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []CheckResult      `json:"checks,omitempty"`
}

// MetadataResponse describes a source and its downloadable qualities.
type MetadataResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Uploader   string                `json:"uploader,omitempty"`
	Duration   float64               `json:"duration"`
	Thumbnail  string                `json:"thumbnail,omitempty"`
	WebpageURL string                `json:"webpage_url,omitempty"`
	Extractor  string                `json:"extractor,omitempty"`
	Qualities  []ytdlp.QualityOption `json:"qualities"`
}

// SubtitleListResponse lists subtitle tracks for a source.
type SubtitleListResponse struct {
	Subtitles []ytdlp.SubtitleDescriptor `json:"subtitles"`
}

// SubtitleDownloadRequest asks for one subtitle track.
type SubtitleDownloadRequest struct {
	SourceURL string `json:"source_url"`
	Lang      string `json:"lang"`
	Format    string `json:"format,omitempty"`
	CallerID  string `json:"caller_id,omitempty"`
}

// SubtitleDownloadResponse reports where the subtitle was written.
type SubtitleDownloadResponse struct {
	Path string `json:"path"`
}

// ErrorResponse is the body of every non-2xx HTTP reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
