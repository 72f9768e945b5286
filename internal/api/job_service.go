package api

import (
	"context"

	"reelpull/internal/jobs"
)

// JobReader abstracts job persistence interactions needed for API queries.
type JobReader interface {
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.Record, error)
	Get(ctx context.Context, id string) (*jobs.Record, error)
	Counts(ctx context.Context) (map[jobs.Status]int, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs matching filter, newest first.
func (s *JobService) List(ctx context.Context, filter jobs.Filter) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Counts returns job counts keyed by status string.
func (s *JobService) Counts(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobCounts(counts), nil
}

// Describe fetches a single job. A missing job returns nil without error.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.store.Get(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	dto := FromRecord(record)
	return &dto, nil
}
