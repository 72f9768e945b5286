package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/services"
	"reelpull/internal/testsupport"
	"reelpull/internal/tier"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	req := testsupport.NewRequest("https://example.com/v/1", "alice")
	req.Tier = tier.High
	req.QualityKey = "1080p"
	record := testsupport.NewJob(t, store, req)
	if record.Status != jobs.StatusReceived || record.Tier != tier.High || record.QualityKey != "1080p" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", record)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record for missing id, got %+v err=%v", missing, err)
	}

	if _, err := store.Create(ctx, req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate id validation error, got %v", err)
	}
}

func TestCreateRequiresFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Create(context.Background(), jobs.Request{SourceURL: "https://x"}); err == nil {
		t.Fatal("expected error for missing job id")
	}
	if _, err := store.Create(context.Background(), jobs.Request{JobID: "a"}); err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/v/2", ""))

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	err := store.Update(ctx, record.ID, jobs.Patch{
		Status:        jobs.Ptr(jobs.StatusCompleted),
		Progress:      jobs.Ptr(100.0),
		ArtifactPath:  jobs.Ptr("/data/anonymous/key.mp4"),
		FileSizeBytes: jobs.Ptr(int64(4096)),
		FileType:      jobs.Ptr("mp4"),
		ExpiresAt:     &expires,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != jobs.StatusCompleted || updated.Progress != 100 || updated.FileSizeBytes != 4096 || updated.FileType != "mp4" {
		t.Fatalf("unexpected updated record: %+v", updated)
	}
	if updated.ExpiresAt == nil || !updated.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected expiry: %v want %v", updated.ExpiresAt, expires)
	}
	if updated.FinishedAt == nil {
		t.Fatal("expected finished_at on terminal status")
	}

	if err := store.Update(ctx, "missing", jobs.Patch{Progress: jobs.Ptr(5.0)}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing record, got %v", err)
	}
	if err := store.Update(ctx, "missing", jobs.Patch{}); err != nil {
		t.Fatalf("empty patch should be a no-op, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/a", "alice"))
	testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/b", "bob"))
	c := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/c", "alice"))
	if err := store.Update(ctx, c.ID, jobs.Patch{Status: jobs.Ptr(jobs.StatusFailed)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := store.List(ctx, jobs.Filter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 records, got %d err=%v", len(all), err)
	}
	alice, err := store.List(ctx, jobs.Filter{CallerID: "alice"})
	if err != nil || len(alice) != 2 {
		t.Fatalf("expected 2 records for alice, got %d err=%v", len(alice), err)
	}
	failed, err := store.List(ctx, jobs.Filter{Statuses: []jobs.Status{jobs.StatusFailed}})
	if err != nil || len(failed) != 1 || failed[0].ID != c.ID {
		t.Fatalf("unexpected failed list: %+v err=%v", failed, err)
	}
	limited, err := store.List(ctx, jobs.Filter{CallerID: "alice", Statuses: []jobs.Status{jobs.StatusReceived}, Limit: 1})
	if err != nil || len(limited) != 1 || limited[0].ID != a.ID {
		t.Fatalf("unexpected limited list: %+v err=%v", limited, err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[jobs.StatusReceived] != 2 || counts[jobs.StatusFailed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestExpiredAndMarkExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	old := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/old", ""))
	fresh := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/fresh", ""))
	for id, expiry := range map[string]time.Time{old.ID: now.Add(-time.Minute), fresh.ID: now.Add(time.Hour)} {
		expiry := expiry
		if err := store.Update(ctx, id, jobs.Patch{
			Status:       jobs.Ptr(jobs.StatusCompleted),
			ArtifactPath: jobs.Ptr("/tmp/" + id),
			ExpiresAt:    &expiry,
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	expired, err := store.Expired(ctx, now)
	if err != nil {
		t.Fatalf("Expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != old.ID {
		t.Fatalf("expected only old record expired, got %+v", expired)
	}

	if err := store.MarkExpired(ctx, old.ID); err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}
	again, err := store.Expired(ctx, now)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected no expired records after marking, got %+v err=%v", again, err)
	}
	marked, _ := store.Get(ctx, old.ID)
	if marked.Status != jobs.StatusExpired || marked.ArtifactPath != "" {
		t.Fatalf("unexpected marked record: %+v", marked)
	}
}

func TestFailInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/run", ""))
	queued := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/queued", ""))
	done := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/done", ""))
	merging := testsupport.NewJob(t, store, testsupport.NewRequest("https://example.com/merge", ""))
	_ = store.Update(ctx, running.ID, jobs.Patch{Status: jobs.Ptr(jobs.StatusExtracting), Progress: jobs.Ptr(40.0)})
	_ = store.Update(ctx, merging.ID, jobs.Patch{Status: jobs.Ptr(jobs.StatusFinalizing)})
	_ = store.Update(ctx, queued.ID, jobs.Patch{Status: jobs.Ptr(jobs.StatusQueued)})
	_ = store.Update(ctx, done.ID, jobs.Patch{Status: jobs.Ptr(jobs.StatusCompleted)})

	count, err := store.FailInterrupted(ctx, "interrupted by restart")
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 interrupted jobs, got %d", count)
	}
	if rec, _ := store.Get(ctx, merging.ID); rec.Status != jobs.StatusFailed || rec.ErrorCode != "interrupted" {
		t.Fatalf("finalizing job should be failed: %+v", rec)
	}
	if rec, _ := store.Get(ctx, done.ID); rec.Status != jobs.StatusCompleted {
		t.Fatalf("completed job should be left alone, got %s", rec.Status)
	}
	failed, _ := store.Get(ctx, running.ID)
	if failed.Status != jobs.StatusFailed || failed.Progress != 0 || failed.ErrorMessage != "interrupted by restart" {
		t.Fatalf("unexpected interrupted record: %+v", failed)
	}
	stillQueued, _ := store.Get(ctx, queued.ID)
	if stillQueued.Status != jobs.StatusQueued {
		t.Fatalf("queued job should be left alone, got %s", stillQueued.Status)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	req := testsupport.NewRequest("https://example.com/persist", "")
	if _, err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	record, err := reopened.Get(context.Background(), req.JobID)
	if err != nil || record == nil {
		t.Fatalf("expected record after reopen, got %+v err=%v", record, err)
	}
}
