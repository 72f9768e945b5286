package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/queue"
	"reelpull/internal/scheduler"
	"reelpull/internal/tier"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		snapshot loadmon.Snapshot
		paused   []tier.Tier
	}{
		{"idle", loadmon.Snapshot{CPUPercent: 10, MemoryPercent: 10}, nil},
		{"overloaded", loadmon.Snapshot{CPUPercent: 85, MemoryPercent: 50, Overloaded: true}, []tier.Tier{tier.Low}},
		{"severe cpu", loadmon.Snapshot{CPUPercent: 95, MemoryPercent: 50, Overloaded: true}, []tier.Tier{tier.Mid, tier.Low}},
		{"severe memory", loadmon.Snapshot{CPUPercent: 20, MemoryPercent: 91, Overloaded: true}, []tier.Tier{tier.Mid, tier.Low}},
		{"high but not flagged", loadmon.Snapshot{CPUPercent: 95, MemoryPercent: 95}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan := scheduler.Plan(tc.snapshot, scheduler.DefaultSevereThreshold)
			want := map[tier.Tier]bool{}
			for _, p := range tc.paused {
				want[p] = true
			}
			for _, tr := range tier.All {
				if plan[tr] != want[tr] {
					t.Fatalf("tier %s paused=%v want %v", tr, plan[tr], want[tr])
				}
			}
			if plan[tier.High] {
				t.Fatal("high tier must never pause")
			}
		})
	}
}

type handled struct {
	mu   sync.Mutex
	reqs []jobs.Request
	ch   chan jobs.Request
}

func newHandled() *handled { return &handled{ch: make(chan jobs.Request, 16)} }

func (h *handled) handle(_ context.Context, req jobs.Request) (jobs.Result, error) {
	h.mu.Lock()
	h.reqs = append(h.reqs, req)
	h.mu.Unlock()
	h.ch <- req
	return jobs.Result{JobID: req.JobID, Status: jobs.StatusCompleted}, nil
}

func (h *handled) await(t *testing.T, timeout time.Duration) jobs.Request {
	t.Helper()
	select {
	case req := <-h.ch:
		return req
	case <-time.After(timeout):
		t.Fatal("timed out waiting for handled request")
		return jobs.Request{}
	}
}

func quietMonitor() *loadmon.Monitor {
	sampler := loadmon.SamplerFunc(func(context.Context) (float64, float64, error) { return 5, 5, nil })
	return loadmon.New(sampler, loadmon.WithSampleInterval(time.Hour), loadmon.WithAdjustInterval(time.Hour))
}

func memoryOpener(backend queue.Backend) scheduler.Opener {
	return func(string, queue.Options) (queue.Backend, error) { return backend, nil }
}

func newScheduler(t *testing.T, handler scheduler.Handler, backend queue.Backend) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(handler, scheduler.Options{
		QueueURL:     "memory://",
		Concurrency:  map[tier.Tier]int{tier.High: 2, tier.Mid: 1, tier.Low: 1},
		BlockTimeout: 50 * time.Millisecond,
		PausePoll:    10 * time.Millisecond,
		Monitor:      quietMonitor(),
		Open:         memoryOpener(backend),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestStartWithoutQueueURLIsDirectMode(t *testing.T) {
	s := scheduler.New(newHandled().handle, scheduler.Options{Monitor: quietMonitor()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	state, err := s.State()
	if state != scheduler.Unavailable || !errors.Is(err, scheduler.ErrNoBackend) {
		t.Fatalf("unexpected state %s err %v", state, err)
	}
	err = s.Enqueue(context.Background(), jobs.Request{JobID: "a", SourceURL: "https://x", Tier: tier.High})
	if !errors.Is(err, queue.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestStartConnectsAndProcessesQueuedRequests(t *testing.T) {
	h := newHandled()
	s := newScheduler(t, h.handle, queue.NewMemory())
	if !s.Available() {
		t.Fatal("expected scheduler to be available")
	}
	if err := s.Enqueue(context.Background(), jobs.Request{JobID: "job-1", SourceURL: "https://x/1", Tier: tier.Mid}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got := h.await(t, 2*time.Second)
	if got.JobID != "job-1" || got.Tier != tier.Mid {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestEnqueueDefaultsInvalidTierToLow(t *testing.T) {
	h := newHandled()
	s := newScheduler(t, h.handle, queue.NewMemory())
	if err := s.Enqueue(context.Background(), jobs.Request{JobID: "job-2", SourceURL: "https://x/2"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := h.await(t, 2*time.Second); got.Tier != tier.Low {
		t.Fatalf("expected low tier, got %q", got.Tier)
	}
}

func TestOpenFailureLeavesSchedulerUnavailable(t *testing.T) {
	s := scheduler.New(newHandled().handle, scheduler.Options{
		QueueURL: "redis://127.0.0.1:1",
		Monitor:  quietMonitor(),
		Open: func(string, queue.Options) (queue.Backend, error) {
			return nil, errors.New("dial refused")
		},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start should not fail on connect errors: %v", err)
	}
	defer s.Stop(context.Background())
	if s.Available() {
		t.Fatal("expected unavailable")
	}
	if _, err := s.State(); err == nil {
		t.Fatal("expected connect error to be recorded")
	}
}

type flakyBackend struct {
	*queue.Memory
	pingErr    error
	dequeueErr atomic.Pointer[error]
}

func (f *flakyBackend) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.Memory.Ping(ctx)
}

func (f *flakyBackend) Dequeue(ctx context.Context, t tier.Tier, block time.Duration) (*jobs.Request, error) {
	if errp := f.dequeueErr.Load(); errp != nil {
		return nil, *errp
	}
	return f.Memory.Dequeue(ctx, t, block)
}

func TestPingFailureLeavesSchedulerUnavailable(t *testing.T) {
	backend := &flakyBackend{Memory: queue.NewMemory(), pingErr: queue.ErrUnavailable}
	s := newScheduler(t, newHandled().handle, backend)
	if s.Available() {
		t.Fatal("expected unavailable after failed ping")
	}
	for _, st := range s.TierStates() {
		if st.Active != 0 {
			t.Fatalf("no workers should run: %+v", st)
		}
	}
}

func TestDequeueFailureMarksUnavailable(t *testing.T) {
	backend := &flakyBackend{Memory: queue.NewMemory()}
	s := newScheduler(t, newHandled().handle, backend)
	if !s.Available() {
		t.Fatal("expected available")
	}
	failure := error(queue.ErrUnavailable)
	backend.dequeueErr.Store(&failure)

	deadline := time.Now().Add(2 * time.Second)
	for s.Available() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never noticed the broker failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
	err := s.Enqueue(context.Background(), jobs.Request{JobID: "late", SourceURL: "https://x", Tier: tier.High})
	if !errors.Is(err, queue.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after failure, got %v", err)
	}
}

func TestMalformedPayloadDoesNotStopWorkers(t *testing.T) {
	backend := &flakyBackend{Memory: queue.NewMemory()}
	h := newHandled()
	s := newScheduler(t, h.handle, backend)

	malformed := error(queue.ErrMalformed)
	backend.dequeueErr.Store(&malformed)
	time.Sleep(100 * time.Millisecond)
	backend.dequeueErr.Store(nil)

	if !s.Available() {
		t.Fatal("malformed payloads must not mark the broker unavailable")
	}
	if err := s.Enqueue(context.Background(), jobs.Request{JobID: "ok", SourceURL: "https://x", Tier: tier.High}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.await(t, 2*time.Second)
}

func TestAdjustPausesAndResumesLowTier(t *testing.T) {
	h := newHandled()
	s := newScheduler(t, h.handle, queue.NewMemory())

	s.Adjust(loadmon.Snapshot{CPUPercent: 85, MemoryPercent: 40, Overloaded: true})
	states := s.TierStates()
	if states[0].Paused || states[1].Paused || !states[2].Paused {
		t.Fatalf("expected only low paused: %+v", states)
	}

	time.Sleep(100 * time.Millisecond)
	if err := s.Enqueue(context.Background(), jobs.Request{JobID: "low-1", SourceURL: "https://x", Tier: tier.Low}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case req := <-h.ch:
		t.Fatalf("paused tier processed %s", req.JobID)
	case <-time.After(200 * time.Millisecond):
	}
	lengths := s.QueueLengths(context.Background())
	if lengths[tier.Low] != 1 {
		t.Fatalf("expected request to wait on the low list, got %v", lengths)
	}

	s.Adjust(loadmon.Snapshot{CPUPercent: 20, MemoryPercent: 20})
	if got := h.await(t, 2*time.Second); got.JobID != "low-1" {
		t.Fatalf("unexpected job %s", got.JobID)
	}
}

func TestPauseHoldsRequestsPulledByBlockedWorkers(t *testing.T) {
	h := newHandled()
	s := scheduler.New(h.handle, scheduler.Options{
		QueueURL:     "memory://",
		Concurrency:  map[tier.Tier]int{tier.High: 1, tier.Mid: 1, tier.Low: 1},
		BlockTimeout: 5 * time.Second,
		PausePoll:    10 * time.Millisecond,
		Monitor:      quietMonitor(),
		Open:         memoryOpener(queue.NewMemory()),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	// Every worker is now parked inside a long blocking pull.
	time.Sleep(50 * time.Millisecond)
	s.Adjust(loadmon.Snapshot{CPUPercent: 95, MemoryPercent: 50, Overloaded: true})
	for _, req := range []jobs.Request{
		{JobID: "low-1", SourceURL: "https://x/l", Tier: tier.Low},
		{JobID: "mid-1", SourceURL: "https://x/m", Tier: tier.Mid},
	} {
		if err := s.Enqueue(context.Background(), req); err != nil {
			t.Fatalf("Enqueue %s: %v", req.JobID, err)
		}
	}
	select {
	case req := <-h.ch:
		t.Fatalf("paused tier ran %s", req.JobID)
	case <-time.After(300 * time.Millisecond):
	}
	lengths := s.QueueLengths(context.Background())
	if lengths[tier.Low] != 1 || lengths[tier.Mid] != 1 {
		t.Fatalf("expected both requests back on their lists, got %v", lengths)
	}

	s.Adjust(loadmon.Snapshot{CPUPercent: 10, MemoryPercent: 10})
	seen := map[string]bool{}
	for range 2 {
		seen[h.await(t, 2*time.Second).JobID] = true
	}
	if !seen["low-1"] || !seen["mid-1"] {
		t.Fatalf("expected both jobs after resume, got %v", seen)
	}
}

type slowPingBackend struct {
	*queue.Memory
	release chan struct{}
}

func (b *slowPingBackend) Ping(ctx context.Context) error {
	select {
	case <-b.release:
		return b.Memory.Ping(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestConnectDoesNotBlockStateQueries(t *testing.T) {
	backend := &slowPingBackend{Memory: queue.NewMemory(), release: make(chan struct{})}
	s := scheduler.New(newHandled().handle, scheduler.Options{
		QueueURL:       "memory://",
		ConnectTimeout: 5 * time.Second,
		Monitor:        quietMonitor(),
		Open:           memoryOpener(backend),
	})
	connected := make(chan error, 1)
	go func() { connected <- s.Start(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		state, _ := s.State()
		if state == scheduler.Connecting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw connecting state, last %s", state)
		}
		time.Sleep(5 * time.Millisecond)
	}

	answered := make(chan bool, 1)
	go func() { answered <- s.Available() }()
	select {
	case ok := <-answered:
		if ok {
			t.Fatal("expected unavailable while the ping is outstanding")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Available blocked behind the connect attempt")
	}
	if err := s.Connect(context.Background()); !errors.Is(err, scheduler.ErrConnectInProgress) {
		t.Fatalf("expected ErrConnectInProgress, got %v", err)
	}

	close(backend.release)
	select {
	case err := <-connected:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the ping completed")
	}
	if !s.Available() {
		t.Fatal("expected available after the ping succeeded")
	}
}

func TestTierStatesReportConcurrency(t *testing.T) {
	s := scheduler.New(newHandled().handle, scheduler.Options{
		Concurrency: map[tier.Tier]int{tier.High: 5, tier.Mid: 3},
		Monitor:     quietMonitor(),
	})
	states := s.TierStates()
	if len(states) != 3 {
		t.Fatalf("expected three tiers, got %d", len(states))
	}
	want := []int{5, 3, 1}
	for i, st := range states {
		if st.Tier != tier.All[i] || st.Concurrency != want[i] {
			t.Fatalf("unexpected state %d: %+v", i, st)
		}
	}
}

func TestStopCancelsInFlightJobsAfterGrace(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	handler := func(ctx context.Context, req jobs.Request) (jobs.Result, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return jobs.Result{JobID: req.JobID, Status: jobs.StatusFailed}, ctx.Err()
	}
	s := scheduler.New(handler, scheduler.Options{
		QueueURL:     "memory://",
		BlockTimeout: 50 * time.Millisecond,
		Monitor:      quietMonitor(),
		Open:         memoryOpener(queue.NewMemory()),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Enqueue(context.Background(), jobs.Request{JobID: "long", SourceURL: "https://x", Tier: tier.High}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-cancelled:
	default:
		t.Fatal("expected in-flight job context to be cancelled")
	}
	if s.Available() {
		t.Fatal("expected unavailable after stop")
	}
}
