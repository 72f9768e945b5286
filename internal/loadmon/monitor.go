package loadmon

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"reelpull/internal/logging"
)

// DefaultThreshold is the utilisation percentage above which the host counts
// as overloaded.
const DefaultThreshold = 80.0

// Snapshot is one published load reading. Snapshots are never mutated after
// publication.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Overloaded    bool      `json:"overloaded"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Classify reports whether either reading is strictly above threshold.
func Classify(cpuPercent, memPercent, threshold float64) bool {
	return cpuPercent > threshold || memPercent > threshold
}

// Adjuster receives the current snapshot on every adjust tick.
type Adjuster interface {
	Adjust(Snapshot)
}

// AdjusterFunc adapts a function to Adjuster.
type AdjusterFunc func(Snapshot)

// Adjust implements Adjuster.
func (f AdjusterFunc) Adjust(s Snapshot) { f(s) }

// Option configures a Monitor.
type Option func(*Monitor)

// WithSampleInterval sets how often the host is sampled.
func WithSampleInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.sampleInterval = d
		}
	}
}

// WithAdjustInterval sets how often RunAdjuster fires.
func WithAdjustInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.adjustInterval = d
		}
	}
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(percent float64) Option {
	return func(m *Monitor) {
		if percent > 0 {
			m.threshold = percent
		}
	}
}

// WithLogger attaches a logger for per-cycle sample lines.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logging.NewComponentLogger(logger, "loadmon")
	}
}

// WithClock replaces the time source stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor owns the latest load snapshot.
type Monitor struct {
	sampler        Sampler
	sampleInterval time.Duration
	adjustInterval time.Duration
	threshold      float64
	logger         *slog.Logger
	now            func() time.Time

	current atomic.Pointer[Snapshot]
}

// New constructs a Monitor. Until the first sample completes the published
// snapshot reports zero utilisation and is not overloaded.
func New(sampler Sampler, opts ...Option) *Monitor {
	if sampler == nil {
		sampler = HostSampler{}
	}
	m := &Monitor{
		sampler:        sampler,
		sampleInterval: 30 * time.Second,
		adjustInterval: 10 * time.Second,
		threshold:      DefaultThreshold,
		logger:         logging.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.current.Store(&Snapshot{})
	return m
}

// Snapshot returns the most recently published reading.
func (m *Monitor) Snapshot() Snapshot {
	return *m.current.Load()
}

// Threshold returns the configured overload threshold.
func (m *Monitor) Threshold() float64 {
	return m.threshold
}

// SampleOnce reads the sampler and publishes a new snapshot. On error the
// previous snapshot stays in place.
func (m *Monitor) SampleOnce(ctx context.Context) (Snapshot, error) {
	cpuPercent, memPercent, err := m.sampler.Sample(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "load sample failed; keeping previous snapshot", "load_sample_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check host metrics access"),
			logging.String(logging.FieldImpact, "tier adjustments use stale load data"),
		)
		return m.Snapshot(), err
	}
	snap := &Snapshot{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Overloaded:    Classify(cpuPercent, memPercent, m.threshold),
		SampledAt:     m.now(),
	}
	m.current.Store(snap)
	m.logger.Info("load sample",
		logging.Float64("cpu_percent", snap.CPUPercent),
		logging.Float64("memory_percent", snap.MemoryPercent),
		logging.Bool("overloaded", snap.Overloaded),
		logging.String(logging.FieldEventType, "load_sample"),
	)
	return *snap, nil
}

// Run samples immediately and then on every sample interval until ctx is
// cancelled. Sample errors never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	_, _ = m.SampleOnce(ctx)
	ticker := time.NewTicker(m.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = m.SampleOnce(ctx)
		}
	}
}

// RunAdjuster calls adjuster with the latest snapshot on every adjust
// interval until ctx is cancelled.
func (m *Monitor) RunAdjuster(ctx context.Context, adjuster Adjuster) error {
	if adjuster == nil {
		return nil
	}
	ticker := time.NewTicker(m.adjustInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			adjuster.Adjust(m.Snapshot())
		}
	}
}
