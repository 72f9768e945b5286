package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"reelpull/internal/config"
	"reelpull/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRequest builds a request with a fresh job id.
func NewRequest(sourceURL, callerID string) jobs.Request {
	return jobs.Request{
		JobID:          uuid.NewString(),
		SourceURL:      sourceURL,
		FormatSelector: "best",
		CallerID:       callerID,
	}
}

// NewJob inserts a record for req.
func NewJob(t testing.TB, store *jobs.Store, req jobs.Request) *jobs.Record {
	t.Helper()

	record, err := store.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
