package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"reelpull/internal/config"
	"reelpull/internal/jobs"
	"reelpull/internal/logging"
	"reelpull/internal/notifications"
	"reelpull/internal/services"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/textutil"
	"reelpull/internal/tier"
)

// Progress checkpoints. Engine progress (0-100) is mapped into the
// extracting band.
const (
	progressStarted    = 5.0
	progressExtracted  = 80.0
	progressCompleted  = 100.0
	extractingBandSize = progressExtracted - progressStarted

	// Engine progress moving less than this is not persisted.
	progressStep = 1.0
)

const anonymousDir = "anonymous"

// Engine downloads media. *ytdlp.Client satisfies it.
type Engine interface {
	Download(ctx context.Context, rawURL, selector, outputDir string, opts ytdlp.DownloadOptions) (*ytdlp.Artifact, error)
}

// Janitor schedules deferred deletion of anonymous artifacts.
type Janitor interface {
	Schedule(path string, delay time.Duration)
}

// Retention holds configured artifact lifetimes.
type Retention struct {
	Premium   time.Duration
	Free      time.Duration
	Anonymous time.Duration
}

// RetentionFromConfig reads the retention section.
func RetentionFromConfig(cfg *config.Config) Retention {
	return Retention{
		Premium:   time.Duration(cfg.Retention.PremiumDays) * 24 * time.Hour,
		Free:      time.Duration(cfg.Retention.FreeDays) * 24 * time.Hour,
		Anonymous: cfg.AnonymousTTL(),
	}
}

// Options configures a Processor.
type Options struct {
	DownloadDir       string
	Retention         Retention
	JobTimeout        time.Duration
	ErrorMessageLimit int
	Notifier          notifications.Service
	Logger            *slog.Logger
	Now               func() time.Time
}

// OptionsFromConfig derives Options from configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		DownloadDir:       cfg.Paths.DownloadDir,
		Retention:         RetentionFromConfig(cfg),
		JobTimeout:        cfg.JobTimeout(),
		ErrorMessageLimit: cfg.Jobs.ErrorMessageLimit,
		Notifier:          notifications.NewService(cfg),
		Logger:            logger,
	}
}

// Processor executes requests.
type Processor struct {
	engine   Engine
	recorder jobs.Recorder
	janitor  Janitor
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Processor. janitor may be nil, in which case anonymous
// artifacts are left for the retention sweeper.
func New(engine Engine, recorder jobs.Recorder, janitor Janitor, opts Options) *Processor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.ErrorMessageLimit <= 0 {
		opts.ErrorMessageLimit = 500
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(nil)
	}
	return &Processor{
		engine:   engine,
		recorder: recorder,
		janitor:  janitor,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "processor"),
		now:      now,
	}
}

// Process runs req to completion and records the outcome. The returned
// Result is always populated; err is non-nil exactly when the job failed.
func (p *Processor) Process(ctx context.Context, req jobs.Request) (result jobs.Result, err error) {
	ctx = services.WithJobID(ctx, req.JobID)
	if req.Tier != "" {
		ctx = services.WithTier(ctx, string(req.Tier))
	}
	logger := logging.WithContext(ctx, p.logger)
	started := p.now()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job panicked: %v", recovered)
			logging.ErrorWithContext(logger, "job panicked", "job_panic",
				logging.String("panic", fmt.Sprint(recovered)),
				logging.String("stack", string(debug.Stack())),
			)
			result = p.fail(ctx, logger, req, err)
		}
		p.announce(ctx, logger, req, result, started)
	}()

	if strings.TrimSpace(req.SourceURL) == "" {
		err = services.Wrap(services.ErrValidation, "processor", "validate", "source url required", nil)
		return p.fail(ctx, logger, req, err), err
	}

	logger.Info("job started",
		logging.String("source_url", req.SourceURL),
		logging.String("selector", selectorFor(req)),
		logging.String(logging.FieldEventType, "job_started"),
	)
	p.update(ctx, logger, req.JobID, jobs.Patch{
		Status:   jobs.Ptr(jobs.StatusExtracting),
		Progress: jobs.Ptr(progressStarted),
	})

	artifact, err := p.extract(ctx, logger, req)
	if err != nil {
		return p.fail(ctx, logger, req, err), err
	}

	p.update(ctx, logger, req.JobID, jobs.Patch{
		Status:   jobs.Ptr(jobs.StatusFinalizing),
		Progress: jobs.Ptr(progressExtracted),
	})

	result, err = p.finalize(ctx, logger, req, artifact)
	if err != nil {
		return p.fail(ctx, logger, req, err), err
	}
	logger.Info("job completed",
		logging.String("artifact", result.ArtifactPath),
		logging.Int64("size_bytes", result.FileSizeBytes),
		logging.Duration("elapsed", p.now().Sub(started)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	return result, nil
}

func (p *Processor) extract(ctx context.Context, logger *slog.Logger, req jobs.Request) (*ytdlp.Artifact, error) {
	outputDir := OutputDir(p.opts.DownloadDir, req.CallerID)

	runCtx := ctx
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	tracker := &progressTracker{last: progressStarted}
	artifact, err := p.engine.Download(runCtx, req.SourceURL, selectorFor(req), outputDir, ytdlp.DownloadOptions{
		JobID: req.JobID,
		Progress: func(percent float64) {
			if value, ok := tracker.advance(percent); ok {
				p.update(ctx, logger, req.JobID, jobs.Patch{Progress: jobs.Ptr(value)})
			}
		},
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "processor", "extract", fmt.Sprintf("job exceeded %s", p.opts.JobTimeout), err)
		}
		return nil, err
	}
	return artifact, nil
}

func (p *Processor) finalize(ctx context.Context, logger *slog.Logger, req jobs.Request, artifact *ytdlp.Artifact) (jobs.Result, error) {
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("stat artifact: %w", err)
	}
	fileType := ytdlp.FileType(artifact.Path)
	entitlement := EntitlementOf(req)
	retention := p.retentionFor(entitlement, req.Policy)
	expires := p.now().Add(retention).UTC()

	p.update(ctx, logger, req.JobID, jobs.Patch{
		Status:        jobs.Ptr(jobs.StatusCompleted),
		Progress:      jobs.Ptr(progressCompleted),
		ArtifactPath:  jobs.Ptr(artifact.Path),
		FileSizeBytes: jobs.Ptr(info.Size()),
		FileType:      jobs.Ptr(fileType),
		ExpiresAt:     &expires,
	})
	if entitlement == tier.Anonymous && p.janitor != nil {
		p.janitor.Schedule(artifact.Path, retention)
	}
	return jobs.Result{
		JobID:         req.JobID,
		Status:        jobs.StatusCompleted,
		ArtifactPath:  artifact.Path,
		FileSizeBytes: info.Size(),
		FileType:      fileType,
	}, nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, req jobs.Request, cause error) jobs.Result {
	message := jobs.Truncate(cause.Error(), p.opts.ErrorMessageLimit)
	code := jobs.ErrorCode(cause)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorCode, code),
		logging.String(logging.FieldErrorHint, failureHint(code)),
	)
	p.update(context.WithoutCancel(ctx), logger, req.JobID, jobs.Patch{
		Status:       jobs.Ptr(jobs.StatusFailed),
		Progress:     jobs.Ptr(0.0),
		ErrorMessage: jobs.Ptr(message),
		ErrorCode:    jobs.Ptr(code),
	})
	return jobs.Result{JobID: req.JobID, Status: jobs.StatusFailed, ErrorMessage: message, ErrorCode: code}
}

// announce pushes the terminal outcome to the configured notifier.
func (p *Processor) announce(ctx context.Context, logger *slog.Logger, req jobs.Request, result jobs.Result, started time.Time) {
	event := notifications.JobEvent{
		JobID:        req.JobID,
		SourceURL:    req.SourceURL,
		CallerID:     req.CallerID,
		Tier:         string(req.Tier),
		ArtifactPath: result.ArtifactPath,
		SizeBytes:    result.FileSizeBytes,
		ErrorMessage: result.ErrorMessage,
		ErrorCode:    result.ErrorCode,
		Elapsed:      p.now().Sub(started),
	}
	notifyCtx := context.WithoutCancel(ctx)
	var err error
	switch result.Status {
	case jobs.StatusCompleted:
		err = p.opts.Notifier.NotifyJobCompleted(notifyCtx, event)
	case jobs.StatusFailed:
		err = p.opts.Notifier.NotifyJobFailed(notifyCtx, event)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "job outcome was not announced"),
		)
	}
}

// update persists a patch. Record failures are logged and never fail the job.
func (p *Processor) update(ctx context.Context, logger *slog.Logger, id string, patch jobs.Patch) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Update(ctx, id, patch); err != nil {
		logging.WarnWithContext(logger, "job record update failed", "job_record_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database"),
			logging.String(logging.FieldImpact, "job status shown to callers may be stale"),
		)
	}
}

func (p *Processor) retentionFor(entitlement tier.Entitlement, policy jobs.Policy) time.Duration {
	switch entitlement {
	case tier.Premium:
		if policy.PremiumDays > 0 {
			return time.Duration(policy.PremiumDays) * 24 * time.Hour
		}
		return p.opts.Retention.Premium
	case tier.Free:
		if policy.FreeDays > 0 {
			return time.Duration(policy.FreeDays) * 24 * time.Hour
		}
		return p.opts.Retention.Free
	default:
		if policy.AnonymousTTLMinutes > 0 {
			return time.Duration(policy.AnonymousTTLMinutes) * time.Minute
		}
		return p.opts.Retention.Anonymous
	}
}

// EntitlementOf infers the caller class from the request: no caller is
// anonymous, a high tier stamp is premium, anything else is free.
func EntitlementOf(req jobs.Request) tier.Entitlement {
	switch {
	case req.Anonymous():
		return tier.Anonymous
	case req.Tier == tier.High:
		return tier.Premium
	default:
		return tier.Free
	}
}

// OutputDir is the per-caller artifact directory.
func OutputDir(root, callerID string) string {
	return filepath.Join(root, textutil.SanitizeSegment(callerID, anonymousDir))
}

func selectorFor(req jobs.Request) string {
	if selector := strings.TrimSpace(req.FormatSelector); selector != "" {
		return selector
	}
	if key := strings.TrimSpace(req.QualityKey); key != "" {
		return key
	}
	return "best"
}

func failureHint(code string) string {
	switch code {
	case "timeout":
		return "raise jobs.timeout or pick a smaller quality"
	case "not_found":
		return "the tool finished without producing a file; check the selector"
	case "validation":
		return "check the submitted url and selector"
	default:
		return "inspect the yt-dlp stderr excerpt in the error"
	}
}

// progressTracker maps engine percentages into the extracting band and only
// reports increases of at least progressStep. yt-dlp restarts at 0% for each
// separately fetched stream, so values never move backwards.
type progressTracker struct {
	last float64
}

func (t *progressTracker) advance(percent float64) (float64, bool) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	value := progressStarted + percent*extractingBandSize/100
	if value <= t.last {
		return 0, false
	}
	if value-t.last < progressStep && value < progressExtracted {
		return 0, false
	}
	t.last = value
	return value, true
}
