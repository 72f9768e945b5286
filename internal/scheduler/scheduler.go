package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelpull/internal/cleanup"
	"reelpull/internal/config"
	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/logging"
	"reelpull/internal/queue"
	"reelpull/internal/tier"
)

// ErrNoBackend means no queue URL is configured; every request is processed
// directly.
var ErrNoBackend = errors.New("no queue backend configured")

// Handler processes one dequeued request. processor.Processor.Process
// satisfies it.
type Handler func(ctx context.Context, req jobs.Request) (jobs.Result, error)

// Opener creates a backend from a URL.
type Opener func(rawURL string, opts queue.Options) (queue.Backend, error)

// Options configures a Scheduler.
type Options struct {
	QueueURL          string
	Concurrency       map[tier.Tier]int
	BlockTimeout      time.Duration
	ConnectTimeout    time.Duration
	ReconnectInterval time.Duration
	SevereThreshold   float64
	// PausePoll is how often a paused worker rechecks its gate.
	PausePoll time.Duration

	Monitor *loadmon.Monitor
	Janitor *cleanup.Janitor
	Sweeper *cleanup.Sweeper
	Open    Opener
	Logger  *slog.Logger
}

// OptionsFromConfig derives scheduler options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QueueURL: cfg.Queue.URL,
		Concurrency: map[tier.Tier]int{
			tier.High: cfg.Queue.HighConcurrency,
			tier.Mid:  cfg.Queue.MidConcurrency,
			tier.Low:  cfg.Queue.LowConcurrency,
		},
		BlockTimeout:      time.Duration(cfg.Queue.BlockTimeout) * time.Second,
		ConnectTimeout:    cfg.QueueConnectTimeout(),
		ReconnectInterval: time.Duration(cfg.Queue.ReconnectInterval) * time.Second,
		SevereThreshold:   cfg.Load.SeverePercent,
	}
}

// Scheduler coordinates the broker connection, tier pools, and load
// adjustment.
type Scheduler struct {
	opts    Options
	handler Handler
	monitor *loadmon.Monitor
	logger  *slog.Logger

	tiers map[tier.Tier]*tierState

	mu            sync.Mutex
	state         Availability
	backend       queue.Backend
	pools         []*pool
	running       bool
	lastErr       error
	lastReconnect time.Time

	rootCtx    context.Context
	rootCancel context.CancelFunc
	loopCancel context.CancelFunc
	group      *errgroup.Group

	teardowns sync.WaitGroup
}

// New constructs a Scheduler. It does nothing until Start.
func New(handler Handler, opts Options) *Scheduler {
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = 5 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.SevereThreshold <= 0 {
		opts.SevereThreshold = DefaultSevereThreshold
	}
	if opts.PausePoll <= 0 {
		opts.PausePoll = 250 * time.Millisecond
	}
	if opts.Open == nil {
		opts.Open = queue.Open
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = loadmon.New(loadmon.HostSampler{}, loadmon.WithLogger(opts.Logger))
	}
	tiers := make(map[tier.Tier]*tierState, len(tier.All))
	for _, t := range tier.All {
		concurrency := opts.Concurrency[t]
		if concurrency <= 0 {
			concurrency = 1
		}
		tiers[t] = &tierState{tier: t, concurrency: concurrency}
	}
	return &Scheduler{
		opts:    opts,
		handler: handler,
		monitor: monitor,
		logger:  logging.NewComponentLogger(opts.Logger, "scheduler"),
		tiers:   tiers,
		state:   Unavailable,
	}
}

// Start launches the background loops and makes the single startup connect
// attempt. A failed connect is logged and leaves the scheduler in direct
// mode; Start only errors when already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.rootCtx, s.rootCancel = context.WithCancel(context.WithoutCancel(ctx))
	loopCtx, loopCancel := context.WithCancel(s.rootCtx)
	s.loopCancel = loopCancel
	group, groupCtx := errgroup.WithContext(loopCtx)
	s.group = group
	s.mu.Unlock()

	group.Go(func() error { return s.monitor.Run(groupCtx) })
	group.Go(func() error { return s.monitor.RunAdjuster(groupCtx, s) })
	if s.opts.Sweeper != nil {
		group.Go(func() error { return s.opts.Sweeper.Run(groupCtx) })
	}

	if err := s.Connect(ctx); err != nil {
		if errors.Is(err, ErrNoBackend) {
			s.logger.Info("no queue url configured; processing requests directly",
				logging.String(logging.FieldEventType, "direct_mode"),
			)
		} else {
			logging.WarnWithContext(s.logger, "queue backend unreachable; processing requests directly", "queue_connect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue.url and that the broker is running"),
				logging.String(logging.FieldImpact, "requests run synchronously in the caller"),
			)
		}
	}
	return nil
}

// ErrConnectInProgress is returned by Connect while another attempt is
// still talking to the broker.
var ErrConnectInProgress = errors.New("queue connect already in progress")

// Connect moves Unavailable to Available: it opens the backend, probes the
// broker, and only then builds and starts the tier pools. Any failure
// returns to Unavailable with no pools. The lock is not held while the
// broker is contacted, so Available and Enqueue keep answering.
func (s *Scheduler) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == Available:
		s.mu.Unlock()
		return nil
	case s.state == Connecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	case !s.running:
		s.mu.Unlock()
		return errors.New("scheduler not running")
	case s.opts.QueueURL == "":
		s.lastErr = ErrNoBackend
		s.mu.Unlock()
		return ErrNoBackend
	}
	s.state = Connecting
	s.lastReconnect = time.Now()
	s.mu.Unlock()

	backend, err := s.opts.Open(s.opts.QueueURL, queue.Options{ConnectTimeout: s.opts.ConnectTimeout})
	if err != nil {
		s.connectFailed(err)
		return fmt.Errorf("open queue backend: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	err = backend.Ping(pingCtx)
	cancel()
	if err != nil {
		_ = backend.Close()
		s.connectFailed(err)
		return err
	}

	s.mu.Lock()
	if !s.running || s.state != Connecting {
		s.mu.Unlock()
		_ = backend.Close()
		return errors.New("scheduler stopped while connecting")
	}
	pools := make([]*pool, 0, len(tier.All))
	for _, t := range tier.All {
		p := s.newPool(s.tiers[t], backend)
		p.start()
		pools = append(pools, p)
	}
	s.backend = backend
	s.pools = pools
	s.state = Available
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("queue backend available",
		logging.Int("high_workers", s.tiers[tier.High].concurrency),
		logging.Int("mid_workers", s.tiers[tier.Mid].concurrency),
		logging.Int("low_workers", s.tiers[tier.Low].concurrency),
		logging.String(logging.FieldEventType, "queue_available"),
	)
	return nil
}

func (s *Scheduler) connectFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connecting {
		s.state = Unavailable
	}
	s.lastErr = err
}

// markUnavailable tears down the pools attached to backend. Workers are
// signalled but not awaited here because a worker may be the caller.
func (s *Scheduler) markUnavailable(backend queue.Backend, cause error) {
	s.mu.Lock()
	if s.state != Available || s.backend != backend {
		s.mu.Unlock()
		return
	}
	pools := s.pools
	s.pools = nil
	s.backend = nil
	s.state = Unavailable
	s.lastErr = cause
	s.teardowns.Add(1)
	s.mu.Unlock()

	logging.WarnWithContext(s.logger, "queue backend lost; switching to direct processing", "queue_unavailable",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check the broker; set queue.reconnect_interval to reconnect automatically"),
		logging.String(logging.FieldImpact, "new requests run synchronously in the caller"),
	)
	for _, p := range pools {
		p.cancelPull()
	}
	go func() {
		defer s.teardowns.Done()
		for _, p := range pools {
			p.wait()
		}
		_ = backend.Close()
	}()
}

// Enqueue places req on its tier list. A broker failure marks the scheduler
// unavailable and is returned so the caller can fall back.
func (s *Scheduler) Enqueue(ctx context.Context, req jobs.Request) error {
	s.mu.Lock()
	backend := s.backend
	available := s.state == Available
	s.mu.Unlock()
	if !available || backend == nil {
		return fmt.Errorf("%w: scheduler not connected", queue.ErrUnavailable)
	}
	t := req.Tier
	if !t.Valid() {
		t = tier.Low
		req.Tier = t
	}
	if err := backend.Enqueue(ctx, t, req); err != nil {
		if errors.Is(err, queue.ErrUnavailable) {
			s.markUnavailable(backend, err)
		}
		return err
	}
	return nil
}

// Adjust implements loadmon.Adjuster: it applies Plan to the tier pause
// flags and, when configured, retries the broker connection.
func (s *Scheduler) Adjust(snapshot loadmon.Snapshot) {
	plan := Plan(snapshot, s.opts.SevereThreshold)
	for _, t := range tier.All {
		state := s.tiers[t]
		paused := plan[t]
		if state.paused.Swap(paused) == paused {
			continue
		}
		msg, event := "tier resumed", "tier_resumed"
		if paused {
			msg, event = "tier paused", "tier_paused"
		}
		s.logger.Info(msg,
			logging.String(logging.FieldTier, string(t)),
			logging.Float64("cpu_percent", snapshot.CPUPercent),
			logging.Float64("memory_percent", snapshot.MemoryPercent),
			logging.String(logging.FieldEventType, event),
		)
	}
	s.maybeReconnect()
}

func (s *Scheduler) maybeReconnect() {
	if s.opts.ReconnectInterval <= 0 || s.opts.QueueURL == "" {
		return
	}
	s.mu.Lock()
	due := s.running && s.state == Unavailable && time.Since(s.lastReconnect) >= s.opts.ReconnectInterval
	ctx := s.rootCtx
	s.mu.Unlock()
	if !due {
		return
	}
	if err := s.Connect(ctx); err != nil {
		s.logger.Debug("queue reconnect failed", logging.Error(err))
	}
}

// Available reports whether requests can be queued.
func (s *Scheduler) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Available
}

// State returns the availability state and the last connection error.
func (s *Scheduler) State() (Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// Snapshot returns the latest load reading.
func (s *Scheduler) Snapshot() loadmon.Snapshot {
	return s.monitor.Snapshot()
}

// TierStates returns a copy of every tier's state in priority order.
func (s *Scheduler) TierStates() []TierState {
	states := make([]TierState, 0, len(tier.All))
	for _, t := range tier.All {
		states = append(states, s.tiers[t].snapshot())
	}
	return states
}

// QueueLengths reports waiting requests per tier while available.
func (s *Scheduler) QueueLengths(ctx context.Context) map[tier.Tier]int64 {
	s.mu.Lock()
	backend := s.backend
	s.mu.Unlock()
	lengths := make(map[tier.Tier]int64, len(tier.All))
	if backend == nil {
		return lengths
	}
	for _, t := range tier.All {
		if n, err := backend.Len(ctx, t); err == nil {
			lengths[t] = n
		}
	}
	return lengths
}

// Stop stops pulling, waits for in-flight jobs until ctx is done (then
// cancels them), closes the broker, and cancels every timer.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	pools := s.pools
	backend := s.backend
	s.pools = nil
	s.backend = nil
	s.state = Unavailable
	loopCancel := s.loopCancel
	rootCancel := s.rootCancel
	group := s.group
	s.mu.Unlock()

	loopCancel()
	groupErr := group.Wait()

	for _, p := range pools {
		p.cancelPull()
	}
	done := make(chan struct{})
	go func() {
		for _, p := range pools {
			p.wait()
		}
		s.teardowns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.WarnWithContext(s.logger, "cancelling in-flight jobs at shutdown", "shutdown_jobs_cancelled",
			logging.String(logging.FieldErrorHint, "allow a longer shutdown grace period"),
			logging.String(logging.FieldImpact, "running jobs are recorded as failed"),
		)
		rootCancel()
		<-done
	}
	rootCancel()

	if backend != nil {
		_ = backend.Close()
	}
	if s.opts.Janitor != nil {
		s.opts.Janitor.Stop()
	}
	return groupErr
}
