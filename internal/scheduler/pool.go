package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/logging"
	"reelpull/internal/queue"
)

// pool is the set of workers pulling one tier from one backend.
type pool struct {
	s       *Scheduler
	state   *tierState
	backend queue.Backend
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *Scheduler) newPool(state *tierState, backend queue.Backend) *pool {
	ctx, cancel := context.WithCancel(s.rootCtx)
	return &pool{
		s:       s,
		state:   state,
		backend: backend,
		logger:  s.logger.With(logging.String(logging.FieldTier, string(state.tier))),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *pool) start() {
	for i := 0; i < p.state.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work()
		}()
	}
}

func (p *pool) cancelPull() { p.cancel() }

func (p *pool) stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *pool) wait() { p.wg.Wait() }

func (p *pool) work() {
	for {
		if p.ctx.Err() != nil {
			return
		}
		if p.state.paused.Load() {
			if !p.sleep(p.s.opts.PausePoll) {
				return
			}
			continue
		}
		req, err := p.backend.Dequeue(p.ctx, p.state.tier, p.s.opts.BlockTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			if errors.Is(err, queue.ErrMalformed) {
				logging.WarnWithContext(p.logger, "dropping malformed queue payload", "queue_payload_malformed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check producers writing to the tier lists"),
					logging.String(logging.FieldImpact, "the malformed request is discarded"),
				)
				continue
			}
			p.s.markUnavailable(p.backend, err)
			return
		}
		if req == nil {
			continue
		}
		// The tier may have been paused while this worker was blocked.
		if p.state.paused.Load() {
			p.putBack(*req)
			continue
		}
		p.run(*req)
	}
}

// putBack returns a request pulled by a paused tier to the head of its list.
// If the broker refuses it the request runs here rather than being lost.
func (p *pool) putBack(req jobs.Request) {
	logger := p.logger.With(logging.String(logging.FieldJobID, req.JobID))
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.s.opts.ConnectTimeout)
	err := p.backend.Requeue(ctx, p.state.tier, req)
	cancel()
	if err == nil {
		logger.Debug("returned request to paused tier", logging.String(logging.FieldEventType, "request_requeued"))
		return
	}
	logging.WarnWithContext(logger, "could not return request to paused tier", "requeue_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the broker"),
		logging.String(logging.FieldImpact, "the request runs despite the pause"),
	)
	p.run(req)
	if errors.Is(err, queue.ErrUnavailable) {
		p.s.markUnavailable(p.backend, err)
	}
}

// sleep waits for d or cancellation and reports whether to keep working.
func (p *pool) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// run executes one request on the scheduler root context so that pulling can
// stop without interrupting the job.
func (p *pool) run(req jobs.Request) {
	p.state.active.Add(1)
	defer p.state.active.Add(-1)

	logger := p.logger.With(logging.String(logging.FieldJobID, req.JobID))
	start := time.Now()
	result, err := p.safeHandle(req)
	if err != nil {
		logging.WarnWithContext(logger, "queued job failed", "job_failed",
			logging.Error(err),
			logging.Duration("duration", time.Since(start)),
			logging.String(logging.FieldErrorHint, "inspect the job record error message"),
			logging.String(logging.FieldImpact, "the job is marked failed"),
		)
		return
	}
	logger.Info("queued job finished",
		logging.String("status", string(result.Status)),
		logging.Duration("duration", time.Since(start)),
		logging.String(logging.FieldEventType, "job_finished"),
	)
}

func (p *pool) safeHandle(req jobs.Request) (result jobs.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return p.s.handler(p.s.rootCtx, req)
}
