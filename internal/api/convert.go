package api

import (
	"sort"
	"time"

	"reelpull/internal/admission"
	"reelpull/internal/deps"
	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/preflight"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/tier"
)

// FromRecord converts a job record to its API representation.
func FromRecord(record *jobs.Record) Job {
	if record == nil {
		return Job{}
	}
	return Job{
		ID:             record.ID,
		SourceURL:      record.SourceURL,
		FormatSelector: record.FormatSelector,
		QualityKey:     record.QualityKey,
		CallerID:       record.CallerID,
		Tier:           string(record.Tier),
		Status:         string(record.Status),
		Progress:       record.Progress,
		ErrorMessage:   record.ErrorMessage,
		ErrorCode:      record.ErrorCode,
		ArtifactPath:   record.ArtifactPath,
		FileSizeBytes:  record.FileSizeBytes,
		FileType:       record.FileType,
		ExpiresAt:      formatTimePtr(record.ExpiresAt),
		CreatedAt:      formatTime(record.CreatedAt),
		UpdatedAt:      formatTime(record.UpdatedAt),
		FinishedAt:     formatTimePtr(record.FinishedAt),
	}
}

// FromRecords converts a slice of records, skipping nil entries.
func FromRecords(records []*jobs.Record) []Job {
	out := make([]Job, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, FromRecord(record))
	}
	return out
}

// FromSubmission converts an admission outcome.
func FromSubmission(sub admission.Submission) SubmitResponse {
	resp := SubmitResponse{
		JobID:                sub.JobID,
		Queued:               sub.Queued,
		Tier:                 string(sub.Tier),
		EstimatedWaitSeconds: sub.EstimatedWaitSeconds,
	}
	if sub.Result != nil {
		resp.Result = &JobResult{
			Status:        string(sub.Result.Status),
			ArtifactPath:  sub.Result.ArtifactPath,
			FileSizeBytes: sub.Result.FileSizeBytes,
			FileType:      sub.Result.FileType,
			ErrorMessage:  sub.Result.ErrorMessage,
			ErrorCode:     sub.Result.ErrorCode,
		}
	}
	return resp
}

// FromMetadata converts extractor metadata.
func FromMetadata(meta *ytdlp.VideoMetadata) MetadataResponse {
	if meta == nil {
		return MetadataResponse{}
	}
	qualities := meta.Qualities
	if qualities == nil {
		qualities = []ytdlp.QualityOption{}
	}
	return MetadataResponse{
		ID:         meta.ID,
		Title:      meta.Title,
		Uploader:   meta.Uploader,
		Duration:   meta.Duration,
		Thumbnail:  meta.Thumbnail,
		WebpageURL: meta.WebpageURL,
		Extractor:  meta.ExtractorKey,
		Qualities:  qualities,
	}
}

// FromLoad converts a load snapshot.
func FromLoad(snapshot loadmon.Snapshot) LoadStatus {
	return LoadStatus{
		CPUPercent:    snapshot.CPUPercent,
		MemoryPercent: snapshot.MemoryPercent,
		Overloaded:    snapshot.Overloaded,
		SampledAt:     formatTime(snapshot.SampledAt),
	}
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// MergeJobCounts returns counts for every known status, zero-filled.
func MergeJobCounts(counts map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.AllStatuses))
	for _, status := range jobs.AllStatuses {
		out[string(status)] = counts[status]
	}
	for status, count := range counts {
		out[string(status)] = count
	}
	return out
}

// SortTiers orders tier statuses high, mid, low.
func SortTiers(tiers []TierStatus) {
	rank := func(name string) int {
		for i, t := range tier.All {
			if string(t) == name {
				return i
			}
		}
		return len(tier.All)
	}
	sort.SliceStable(tiers, func(i, j int) bool { return rank(tiers[i].Tier) < rank(tiers[j].Tier) })
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
