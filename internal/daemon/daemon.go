package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"reelpull/internal/admission"
	"reelpull/internal/api"
	"reelpull/internal/config"
	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/logging"
	"reelpull/internal/preflight"
	"reelpull/internal/processor"
	"reelpull/internal/scheduler"
	"reelpull/internal/services"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/tier"
)

// Store is the job persistence the daemon needs.
type Store interface {
	api.JobReader
	FailInterrupted(ctx context.Context, message string) (int64, error)
	Path() string
}

// Scheduler is the tier queue manager surface used by the daemon.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() (scheduler.Availability, error)
	Snapshot() loadmon.Snapshot
	TierStates() []scheduler.TierState
	QueueLengths(ctx context.Context) map[tier.Tier]int64
}

// Submitter admits new jobs.
type Submitter interface {
	Submit(ctx context.Context, req jobs.Request) (admission.Submission, error)
}

// Extractor is the engine surface behind the metadata, subtitle, and stream
// endpoints.
type Extractor interface {
	FetchMetadata(ctx context.Context, rawURL string) (*ytdlp.VideoMetadata, error)
	ListSubtitles(ctx context.Context, rawURL string) ([]ytdlp.SubtitleDescriptor, error)
	DownloadSubtitle(ctx context.Context, rawURL, lang, format, outputDir, baseName string) (string, error)
	StreamDownload(ctx context.Context, rawURL, selector string) (*ytdlp.ProcessHandle, error)
}

// Deps bundles the collaborators the daemon coordinates.
type Deps struct {
	Store     Store
	Scheduler Scheduler
	Router    Submitter
	Extractor Extractor
}

// Daemon coordinates background scheduling and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     Store
	scheduler Scheduler
	router    Submitter
	extractor Extractor
	jobSvc    *api.JobService
	api       *apiServer

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
	checks  atomic.Pointer[[]preflight.Result]
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Store == nil || d.Scheduler == nil || d.Router == nil || d.Extractor == nil {
		return nil, errors.New("daemon requires config, store, scheduler, router, and extractor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	daemon := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     d.Store,
		scheduler: d.Scheduler,
		router:    d.Router,
		extractor: d.Extractor,
		jobSvc:    api.NewJobService(d.Store),
		lockPath:  lockPath,
		pidPath:   cfg.PIDPath(),
		lock:      flock.New(lockPath),
	}
	daemon.api = newAPIServer(cfg, daemon, logger)
	return daemon, nil
}

// Start acquires the daemon lock, fails jobs interrupted by a previous run,
// starts the scheduler, and begins serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelpull daemon instance is already running")
	}

	if err := writePID(d.pidPath); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	if n, err := d.store.FailInterrupted(ctx, "interrupted by daemon restart"); err != nil {
		logging.WarnWithContext(d.logger, "failed to reconcile interrupted jobs", "reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the job database"),
			logging.String(logging.FieldImpact, "jobs from the previous run may appear stuck"),
		)
	} else if n > 0 {
		d.logger.Info("marked interrupted jobs failed",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "jobs_reconciled"),
		)
	}

	d.refreshChecks(ctx)

	if err := d.scheduler.Start(ctx); err != nil {
		d.releaseLock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(ctx); err != nil {
		_ = d.scheduler.Stop(ctx)
		d.releaseLock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("reelpull daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops the API and the scheduler, then releases the daemon lock.
// In-flight jobs get until ctx is done to finish.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Swap(false) {
		return
	}
	d.api.stop()
	if err := d.scheduler.Stop(ctx); err != nil {
		d.logger.Warn("scheduler stop returned error", logging.Error(err))
	}
	d.releaseLock()
	d.logger.Info("reelpull daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) releaseLock() {
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Debug("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound HTTP address, or "" when not listening.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

func (d *Daemon) refreshChecks(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run reelpull status for details"),
			logging.String(logging.FieldImpact, "jobs depending on this check may fail"),
		)
	}
	d.checks.Store(&results)
	return results
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	state, lastErr := d.scheduler.State()
	waiting := d.scheduler.QueueLengths(ctx)
	tiers := make([]api.TierStatus, 0, len(tier.All))
	for _, ts := range d.scheduler.TierStates() {
		tiers = append(tiers, api.TierStatus{
			Tier:        string(ts.Tier),
			Concurrency: ts.Concurrency,
			Paused:      ts.Paused,
			Active:      ts.Active,
			Waiting:     waiting[ts.Tier],
		})
	}
	api.SortTiers(tiers)

	sched := api.SchedulerStatus{
		Availability: string(state),
		Tiers:        tiers,
		Load:         api.FromLoad(d.scheduler.Snapshot()),
	}
	if lastErr != nil {
		sched.LastError = lastErr.Error()
	}

	counts, err := d.jobSvc.Counts(ctx)
	if err != nil {
		d.logger.Debug("job counts unavailable", logging.Error(err))
	}

	var checks []preflight.Result
	if stored := d.checks.Load(); stored != nil {
		checks = *stored
	}

	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		DownloadDir:  d.cfg.Paths.DownloadDir,
		Scheduler:    sched,
		JobCounts:    counts,
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
		Checks:       api.FromChecks(checks),
	}
}

// Submit admits a new job.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	sub, err := d.router.Submit(ctx, req.ToRequest())
	if err != nil {
		return api.SubmitResponse{}, err
	}
	return api.FromSubmission(sub), nil
}

// ListJobs returns jobs filtered by status and caller.
func (d *Daemon) ListJobs(ctx context.Context, filter jobs.Filter) ([]api.Job, error) {
	return d.jobSvc.List(ctx, filter)
}

// DescribeJob returns one job, or nil when it does not exist.
func (d *Daemon) DescribeJob(ctx context.Context, id string) (*api.Job, error) {
	return d.jobSvc.Describe(ctx, strings.TrimSpace(id))
}

// Metadata fetches source metadata and synthesized quality options.
func (d *Daemon) Metadata(ctx context.Context, rawURL string) (api.MetadataResponse, error) {
	if strings.TrimSpace(rawURL) == "" {
		return api.MetadataResponse{}, services.Wrap(services.ErrValidation, "daemon", "metadata", "url required", nil)
	}
	meta, err := d.extractor.FetchMetadata(ctx, rawURL)
	if err != nil {
		return api.MetadataResponse{}, err
	}
	return api.FromMetadata(meta), nil
}

// Subtitles lists subtitle tracks for a source.
func (d *Daemon) Subtitles(ctx context.Context, rawURL string) (api.SubtitleListResponse, error) {
	if strings.TrimSpace(rawURL) == "" {
		return api.SubtitleListResponse{}, services.Wrap(services.ErrValidation, "daemon", "subtitles", "url required", nil)
	}
	subs, err := d.extractor.ListSubtitles(ctx, rawURL)
	if err != nil {
		return api.SubtitleListResponse{}, err
	}
	if subs == nil {
		subs = []ytdlp.SubtitleDescriptor{}
	}
	return api.SubtitleListResponse{Subtitles: subs}, nil
}

// DownloadSubtitle writes one subtitle track into the caller's directory.
func (d *Daemon) DownloadSubtitle(ctx context.Context, req api.SubtitleDownloadRequest) (api.SubtitleDownloadResponse, error) {
	if strings.TrimSpace(req.SourceURL) == "" || strings.TrimSpace(req.Lang) == "" {
		return api.SubtitleDownloadResponse{}, services.Wrap(services.ErrValidation, "daemon", "subtitle download", "url and lang required", nil)
	}
	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = "srt"
	}
	dir := filepath.Join(processor.OutputDir(d.cfg.Paths.DownloadDir, req.CallerID), "subtitles")
	path, err := d.extractor.DownloadSubtitle(ctx, req.SourceURL, req.Lang, format, dir, uuid.NewString())
	if err != nil {
		return api.SubtitleDownloadResponse{}, err
	}
	return api.SubtitleDownloadResponse{Path: path}, nil
}

// Stream starts a pass-through download.
func (d *Daemon) Stream(ctx context.Context, rawURL, selector string) (*ytdlp.ProcessHandle, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "stream", "url required", nil)
	}
	return d.extractor.StreamDownload(ctx, rawURL, selector)
}

// Available reports whether the scheduler is queueing.
func (d *Daemon) Available() bool {
	state, _ := d.scheduler.State()
	return state == scheduler.Available
}

func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPID returns the PID recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

var (
	_ Scheduler = (*scheduler.Scheduler)(nil)
	_ Submitter = (*admission.Router)(nil)
	_ Extractor = (*ytdlp.Client)(nil)
	_ Store     = (*jobs.Store)(nil)
)
