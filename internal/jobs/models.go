package jobs

import (
	"context"
	"errors"
	"time"

	"reelpull/internal/services"
	"reelpull/internal/tier"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusReceived   Status = "received"
	StatusQueued     Status = "queued"
	StatusExtracting Status = "extracting"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusExpired marks a completed job whose artifact retention ran out.
	StatusExpired Status = "expired"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusReceived,
	StatusQueued,
	StatusExtracting,
	StatusFinalizing,
	StatusCompleted,
	StatusFailed,
	StatusExpired,
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	for _, s := range AllStatuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Policy overrides configured retention. Zero fields use the defaults.
type Policy struct {
	PremiumDays         int `json:"premium_days,omitempty"`
	FreeDays            int `json:"free_days,omitempty"`
	AnonymousTTLMinutes int `json:"anonymous_ttl_minutes,omitempty"`
}

// Request is one immutable acquisition attempt. It travels through the broker
// as JSON.
type Request struct {
	JobID          string    `json:"job_id"`
	SourceURL      string    `json:"source_url"`
	FormatSelector string    `json:"format_selector"`
	QualityKey     string    `json:"quality_key,omitempty"`
	CallerID       string    `json:"caller_id,omitempty"`
	Tier           tier.Tier `json:"tier,omitempty"`
	Policy         Policy    `json:"policy_settings"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Anonymous reports whether the request has no caller identity.
func (r Request) Anonymous() bool {
	return r.CallerID == ""
}

// Result is the terminal outcome of processing a request.
type Result struct {
	JobID         string `json:"job_id"`
	Status        Status `json:"status"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// Record is the persisted view of a job.
type Record struct {
	ID             string     `json:"id"`
	SourceURL      string     `json:"source_url"`
	FormatSelector string     `json:"format_selector"`
	QualityKey     string     `json:"quality_key,omitempty"`
	CallerID       string     `json:"caller_id,omitempty"`
	Tier           tier.Tier  `json:"tier"`
	Status         Status     `json:"status"`
	Progress       float64    `json:"progress"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ArtifactPath   string     `json:"artifact_path,omitempty"`
	FileSizeBytes  int64      `json:"file_size_bytes,omitempty"`
	FileType       string     `json:"file_type,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Status        *Status
	Progress      *float64
	ErrorMessage  *string
	ErrorCode     *string
	ArtifactPath  *string
	FileSizeBytes *int64
	FileType      *string
	ExpiresAt     *time.Time
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Progress == nil && p.ErrorMessage == nil && p.ErrorCode == nil &&
		p.ArtifactPath == nil && p.FileSizeBytes == nil && p.FileType == nil && p.ExpiresAt == nil
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// Recorder is the job record collaborator used by the processor.
type Recorder interface {
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, patch Patch) error
}

// ErrorClassifier lets errors declare the code persisted alongside a failure.
type ErrorClassifier interface {
	ErrorKind() string
}

// ErrorCode returns the persisted classification for err.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := classifier.ErrorKind(); kind != "" {
			return kind
		}
	}
	return services.Kind(err)
}

// Truncate bounds message to limit bytes without splitting a UTF-8 sequence.
func Truncate(message string, limit int) string {
	if limit <= 0 || len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !isRuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
