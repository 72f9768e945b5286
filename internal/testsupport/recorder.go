package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/services"
)

// Recorder is an in-memory jobs.Recorder that keeps every applied patch.
type Recorder struct {
	mu        sync.Mutex
	records   map[string]*jobs.Record
	patches   map[string][]jobs.Patch
	UpdateErr error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		records: make(map[string]*jobs.Record),
		patches: make(map[string][]jobs.Patch),
	}
}

// Seed stores a received record for req.
func (r *Recorder) Seed(req jobs.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.records[req.JobID] = &jobs.Record{
		ID:             req.JobID,
		SourceURL:      req.SourceURL,
		FormatSelector: req.FormatSelector,
		CallerID:       req.CallerID,
		Tier:           req.Tier,
		Status:         jobs.StatusReceived,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Get implements jobs.Recorder.
func (r *Recorder) Get(_ context.Context, id string) (*jobs.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

// Update implements jobs.Recorder. Unknown ids are created on first update.
func (r *Recorder) Update(_ context.Context, id string, patch jobs.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	if id == "" {
		return services.Wrap(services.ErrValidation, "recorder", "update", "empty id", errors.New("id required"))
	}
	record, ok := r.records[id]
	if !ok {
		record = &jobs.Record{ID: id, CreatedAt: time.Now().UTC()}
		r.records[id] = record
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.Progress != nil {
		record.Progress = *patch.Progress
	}
	if patch.ErrorMessage != nil {
		record.ErrorMessage = *patch.ErrorMessage
	}
	if patch.ErrorCode != nil {
		record.ErrorCode = *patch.ErrorCode
	}
	if patch.ArtifactPath != nil {
		record.ArtifactPath = *patch.ArtifactPath
	}
	if patch.FileSizeBytes != nil {
		record.FileSizeBytes = *patch.FileSizeBytes
	}
	if patch.FileType != nil {
		record.FileType = *patch.FileType
	}
	if patch.ExpiresAt != nil {
		expires := *patch.ExpiresAt
		record.ExpiresAt = &expires
	}
	record.UpdatedAt = time.Now().UTC()
	r.patches[id] = append(r.patches[id], patch)
	return nil
}

// Progress returns every progress value written for id, in order.
func (r *Recorder) Progress(id string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []float64
	for _, patch := range r.patches[id] {
		if patch.Progress != nil {
			values = append(values, *patch.Progress)
		}
	}
	return values
}

// Statuses returns every status written for id, in order.
func (r *Recorder) Statuses(id string) []jobs.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []jobs.Status
	for _, patch := range r.patches[id] {
		if patch.Status != nil {
			values = append(values, *patch.Status)
		}
	}
	return values
}
