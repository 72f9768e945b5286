package processor_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/logging"
	"reelpull/internal/notifications"
	"reelpull/internal/processor"
	"reelpull/internal/services"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/testsupport"
	"reelpull/internal/tier"
)

type fakeEngine struct {
	t        *testing.T
	progress []float64
	err      error
	block    bool
	panicMsg string

	mu        sync.Mutex
	selectors []string
	dirs      []string
}

func (f *fakeEngine) Download(ctx context.Context, rawURL, selector, outputDir string, opts ytdlp.DownloadOptions) (*ytdlp.Artifact, error) {
	f.mu.Lock()
	f.selectors = append(f.selectors, selector)
	f.dirs = append(f.dirs, outputDir)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for _, p := range f.progress {
		if opts.Progress != nil {
			opts.Progress(p)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(outputDir, "1700000000000-"+opts.JobID+".mp4")
	testsupport.WriteMP4(f.t, path, 2048)
	return &ytdlp.Artifact{Path: path, Size: 2048, Type: "mp4", Source: ytdlp.SourcePrinted}, nil
}

type fakeJanitor struct {
	mu    sync.Mutex
	paths []string
	delay []time.Duration
}

func (j *fakeJanitor) Schedule(path string, delay time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.paths = append(j.paths, path)
	j.delay = append(j.delay, delay)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newProcessor(t *testing.T, engine processor.Engine, janitor processor.Janitor, mutate ...func(*processor.Options)) (*processor.Processor, *testsupport.Recorder, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	opts := processor.OptionsFromConfig(cfg, logging.NewNop())
	opts.Now = func() time.Time { return fixedNow }
	for _, fn := range mutate {
		fn(&opts)
	}
	recorder := testsupport.NewRecorder()
	return processor.New(engine, recorder, janitor, opts), recorder, cfg.Paths.DownloadDir
}

func TestProcessAnonymousSuccess(t *testing.T) {
	engine := &fakeEngine{t: t, progress: []float64{0, 10, 50, 100}}
	janitor := &fakeJanitor{}
	proc, recorder, root := newProcessor(t, engine, janitor)

	req := testsupport.NewRequest("https://example.com/v/1", "")
	req.Tier = tier.Low
	recorder.Seed(req)

	result, err := proc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != jobs.StatusCompleted || result.FileSizeBytes != 2048 || result.FileType != "mp4" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if filepath.Dir(result.ArtifactPath) != filepath.Join(root, "anonymous") {
		t.Fatalf("expected anonymous output dir, got %s", result.ArtifactPath)
	}

	progress := recorder.Progress(req.JobID)
	want := []float64{5, 12.5, 42.5, 80, 80, 100}
	if len(progress) != len(want) {
		t.Fatalf("unexpected progress sequence: %v", progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("unexpected progress sequence: %v want %v", progress, want)
		}
	}
	statuses := recorder.Statuses(req.JobID)
	if len(statuses) != 3 || statuses[0] != jobs.StatusExtracting || statuses[1] != jobs.StatusFinalizing || statuses[2] != jobs.StatusCompleted {
		t.Fatalf("unexpected status sequence: %v", statuses)
	}

	record, _ := recorder.Get(context.Background(), req.JobID)
	if record.ExpiresAt == nil || !record.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("expected 60 minute anonymous expiry, got %v", record.ExpiresAt)
	}
	if len(janitor.paths) != 1 || janitor.paths[0] != result.ArtifactPath || janitor.delay[0] != time.Hour {
		t.Fatalf("expected deferred deletion, got %+v", janitor)
	}
}

func TestProcessRetentionByEntitlement(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		tier   tier.Tier
		policy jobs.Policy
		want   time.Duration
	}{
		{"premium", "alice", tier.High, jobs.Policy{}, 30 * 24 * time.Hour},
		{"free", "bob", tier.Mid, jobs.Policy{}, 7 * 24 * time.Hour},
		{"free override", "bob", tier.Mid, jobs.Policy{FreeDays: 2}, 2 * 24 * time.Hour},
		{"anonymous override", "", tier.Low, jobs.Policy{AnonymousTTLMinutes: 5}, 5 * time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			janitor := &fakeJanitor{}
			proc, recorder, root := newProcessor(t, &fakeEngine{t: t}, janitor)
			req := testsupport.NewRequest("https://example.com/v", tc.caller)
			req.Tier = tc.tier
			req.Policy = tc.policy

			result, err := proc.Process(context.Background(), req)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			record, _ := recorder.Get(context.Background(), req.JobID)
			if record.ExpiresAt == nil || !record.ExpiresAt.Equal(fixedNow.Add(tc.want)) {
				t.Fatalf("expected expiry %s, got %v", tc.want, record.ExpiresAt)
			}
			if tc.caller != "" {
				if len(janitor.paths) != 0 {
					t.Fatalf("identified callers must not get deferred deletion")
				}
				if filepath.Dir(result.ArtifactPath) != filepath.Join(root, tc.caller) {
					t.Fatalf("unexpected caller dir: %s", result.ArtifactPath)
				}
			}
		})
	}
}

func TestProcessFailureTruncatesError(t *testing.T) {
	engine := &fakeEngine{
		t:        t,
		progress: []float64{30},
		err:      &ytdlp.ExtractionError{Operation: "download", ExitCode: 1, Stderr: strings.Repeat("x", 2000)},
	}
	proc, recorder, _ := newProcessor(t, engine, nil, func(o *processor.Options) { o.ErrorMessageLimit = 40 })
	req := testsupport.NewRequest("https://example.com/bad", "bob")

	result, err := proc.Process(context.Background(), req)
	var extErr *ytdlp.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if result.Status != jobs.StatusFailed || len(result.ErrorMessage) != 40 {
		t.Fatalf("unexpected failed result: %+v", result)
	}
	record, _ := recorder.Get(context.Background(), req.JobID)
	if record.Status != jobs.StatusFailed || record.Progress != 0 || record.ErrorCode != "external_tool" || len(record.ErrorMessage) != 40 {
		t.Fatalf("unexpected failed record: %+v", record)
	}
}

func TestProcessJobTimeout(t *testing.T) {
	engine := &fakeEngine{t: t, block: true}
	proc, recorder, _ := newProcessor(t, engine, nil, func(o *processor.Options) { o.JobTimeout = 20 * time.Millisecond })
	req := testsupport.NewRequest("https://example.com/slow", "")

	_, err := proc.Process(context.Background(), req)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	record, _ := recorder.Get(context.Background(), req.JobID)
	if record.Status != jobs.StatusFailed || record.ErrorCode != "timeout" {
		t.Fatalf("unexpected record after timeout: %+v", record)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	proc, recorder, _ := newProcessor(t, &fakeEngine{t: t, panicMsg: "boom"}, nil)
	req := testsupport.NewRequest("https://example.com/panic", "")

	result, err := proc.Process(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if result.Status != jobs.StatusFailed {
		t.Fatalf("expected failed result, got %+v", result)
	}
	record, _ := recorder.Get(context.Background(), req.JobID)
	if record.Status != jobs.StatusFailed {
		t.Fatalf("expected failed record, got %+v", record)
	}
}

func TestProcessProgressIsMonotonic(t *testing.T) {
	engine := &fakeEngine{t: t, progress: []float64{50, 100, 0, 20, 60, 100, 100.5}}
	proc, recorder, _ := newProcessor(t, engine, nil)
	req := testsupport.NewRequest("https://example.com/split", "")

	if _, err := proc.Process(context.Background(), req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	progress := recorder.Progress(req.JobID)
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Fatalf("expected final progress 100, got %v", progress)
	}
}

func TestProcessSelectorFallback(t *testing.T) {
	engine := &fakeEngine{t: t}
	proc, _, _ := newProcessor(t, engine, nil)

	req := testsupport.NewRequest("https://example.com/q", "")
	req.FormatSelector = ""
	req.QualityKey = "720p"
	if _, err := proc.Process(context.Background(), req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	req = testsupport.NewRequest("https://example.com/q", "")
	req.FormatSelector = ""
	if _, err := proc.Process(context.Background(), req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if engine.selectors[0] != "720p" || engine.selectors[1] != "best" {
		t.Fatalf("unexpected selectors: %v", engine.selectors)
	}
}

func TestProcessRejectsMissingURL(t *testing.T) {
	proc, _, _ := newProcessor(t, &fakeEngine{t: t}, nil)
	req := testsupport.NewRequest("", "")
	_, err := proc.Process(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecorderFailureDoesNotFailJob(t *testing.T) {
	proc, recorder, _ := newProcessor(t, &fakeEngine{t: t}, nil)
	recorder.UpdateErr = errors.New("db down")
	req := testsupport.NewRequest("https://example.com/ok", "")
	if _, err := proc.Process(context.Background(), req); err != nil {
		t.Fatalf("record failures must not fail the job: %v", err)
	}
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []notifications.JobEvent
	failed    []notifications.JobEvent
	err       error
}

func (n *fakeNotifier) NotifyJobCompleted(_ context.Context, event notifications.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, event)
	return n.err
}

func (n *fakeNotifier) NotifyJobFailed(_ context.Context, event notifications.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, event)
	return n.err
}

func (n *fakeNotifier) TestNotification(context.Context) error { return n.err }

func TestProcessAnnouncesOutcomes(t *testing.T) {
	notifier := &fakeNotifier{}
	withNotifier := func(o *processor.Options) { o.Notifier = notifier }

	proc, _, _ := newProcessor(t, &fakeEngine{t: t}, nil, withNotifier)
	ok := testsupport.NewRequest("https://example.com/ok", "alice")
	ok.Tier = tier.High
	if _, err := proc.Process(context.Background(), ok); err != nil {
		t.Fatalf("Process: %v", err)
	}

	failing := &fakeEngine{t: t, err: &ytdlp.ExtractionError{Operation: "download", ExitCode: 1, Stderr: "gone"}}
	proc, _, _ = newProcessor(t, failing, nil, withNotifier)
	bad := testsupport.NewRequest("https://example.com/bad", "")
	if _, err := proc.Process(context.Background(), bad); err == nil {
		t.Fatal("expected failure")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.completed) != 1 || notifier.completed[0].JobID != ok.JobID || notifier.completed[0].Tier != "high" || notifier.completed[0].SizeBytes != 2048 {
		t.Fatalf("unexpected completion events: %+v", notifier.completed)
	}
	if len(notifier.failed) != 1 || notifier.failed[0].JobID != bad.JobID || notifier.failed[0].ErrorCode != "external_tool" {
		t.Fatalf("unexpected failure events: %+v", notifier.failed)
	}
}

func TestNotifierFailureDoesNotFailJob(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("ntfy down")}
	proc, _, _ := newProcessor(t, &fakeEngine{t: t}, nil, func(o *processor.Options) { o.Notifier = notifier })
	if _, err := proc.Process(context.Background(), testsupport.NewRequest("https://example.com/ok", "")); err != nil {
		t.Fatalf("notification failures must not fail the job: %v", err)
	}
}
