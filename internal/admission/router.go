package admission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/logging"
	"reelpull/internal/services"
	"reelpull/internal/tier"
)

// Queue is the scheduler surface the router needs.
type Queue interface {
	Available() bool
	Enqueue(ctx context.Context, req jobs.Request) error
	Snapshot() loadmon.Snapshot
}

// Handler processes a request to completion.
type Handler func(ctx context.Context, req jobs.Request) (jobs.Result, error)

// Intake persists a new job record before routing.
type Intake interface {
	Create(ctx context.Context, req jobs.Request) (*jobs.Record, error)
}

// Submission is the outcome of Submit. Exactly one of Queued or Result is
// meaningful.
type Submission struct {
	JobID                string        `json:"job_id"`
	Queued               bool          `json:"queued"`
	Tier                 tier.Tier     `json:"tier"`
	EstimatedWait        time.Duration `json:"-"`
	EstimatedWaitSeconds int           `json:"estimated_wait_seconds,omitempty"`
	Result               *jobs.Result  `json:"result,omitempty"`
}

// Router routes submissions to the tier queue or to direct processing.
type Router struct {
	resolver tier.Resolver
	queue    Queue
	handler  Handler
	intake   Intake
	recorder jobs.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Router.
type Option func(*Router)

// WithIntake creates a job record for every submission.
func WithIntake(intake Intake) Option {
	return func(r *Router) { r.intake = intake }
}

// WithRecorder lets the router mark queued jobs.
func WithRecorder(recorder jobs.Recorder) Option {
	return func(r *Router) { r.recorder = recorder }
}

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logging.NewComponentLogger(logger, "admission") }
}

// WithClock replaces the time source used for SubmittedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Router. queue may be nil, in which case every request is
// processed directly.
func New(resolver tier.Resolver, queue Queue, handler Handler, opts ...Option) *Router {
	r := &Router{
		resolver: resolver,
		queue:    queue,
		handler:  handler,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit admits req. Processing failures on the direct path are reported
// through Submission.Result; the returned error covers validation and
// record creation only.
func (r *Router) Submit(ctx context.Context, req jobs.Request) (Submission, error) {
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if req.SourceURL == "" {
		return Submission{}, services.Wrap(services.ErrValidation, "admission", "submit", "source url required", nil)
	}
	if strings.TrimSpace(req.JobID) == "" {
		req.JobID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = r.now().UTC()
	}

	resolved, err := tier.Resolve(ctx, r.resolver, req.CallerID)
	if err != nil {
		logging.WarnWithContext(r.logger, "entitlement lookup failed; using mid tier", "entitlement_lookup_failed",
			logging.String(logging.FieldJobID, req.JobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the entitlement source"),
			logging.String(logging.FieldImpact, "request is scheduled on the mid tier"),
		)
	}
	req.Tier = resolved
	logger := r.logger.With(
		logging.String(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldTier, string(req.Tier)),
	)

	if r.intake != nil {
		if _, err := r.intake.Create(ctx, req); err != nil {
			return Submission{}, err
		}
	}

	if r.queue != nil && r.queue.Available() {
		if sub, ok := r.enqueue(ctx, logger, req); ok {
			return sub, nil
		}
	}
	return r.direct(ctx, logger, req), nil
}

func (r *Router) enqueue(ctx context.Context, logger *slog.Logger, req jobs.Request) (Submission, bool) {
	// Mark queued first so a fast worker's progress is never overwritten.
	r.markQueued(ctx, logger, req.JobID)
	if err := r.queue.Enqueue(ctx, req); err != nil {
		logging.WarnWithContext(logger, "enqueue failed; processing directly", "enqueue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue broker"),
			logging.String(logging.FieldImpact, "request runs synchronously in the caller"),
		)
		return Submission{}, false
	}
	wait := tier.EstimatedWait(req.Tier, r.queue.Snapshot().Overloaded)
	logger.Info("request queued",
		logging.Duration("estimated_wait", wait),
		logging.String(logging.FieldEventType, "request_queued"),
	)
	return Submission{
		JobID:                req.JobID,
		Queued:               true,
		Tier:                 req.Tier,
		EstimatedWait:        wait,
		EstimatedWaitSeconds: int(wait / time.Second),
	}, true
}

func (r *Router) markQueued(ctx context.Context, logger *slog.Logger, id string) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Update(ctx, id, jobs.Patch{Status: jobs.Ptr(jobs.StatusQueued)}); err != nil {
		logger.Debug("mark queued failed", logging.Error(err))
	}
}

func (r *Router) direct(ctx context.Context, logger *slog.Logger, req jobs.Request) Submission {
	logger.Info("processing request directly", logging.String(logging.FieldEventType, "request_direct"))
	result, err := r.handler(ctx, req)
	if err != nil && result.Status == "" {
		result = jobs.Result{JobID: req.JobID, Status: jobs.StatusFailed, ErrorMessage: err.Error()}
	}
	return Submission{
		JobID:  req.JobID,
		Tier:   req.Tier,
		Result: &result,
	}
}
