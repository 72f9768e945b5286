package cleanup

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"reelpull/internal/logging"
)

// Janitor schedules deferred file deletions.
type Janitor struct {
	logger *slog.Logger
	remove func(string) error

	mu      sync.Mutex
	timers  map[string]scheduled
	seq     uint64
	stopped bool
}

type scheduled struct {
	timer *time.Timer
	id    uint64
}

// NewJanitor returns a janitor that deletes with os.Remove.
func NewJanitor(logger *slog.Logger) *Janitor {
	return &Janitor{
		logger: logging.NewComponentLogger(logger, "janitor"),
		remove: os.Remove,
		timers: make(map[string]scheduled),
	}
}

// Schedule deletes path after delay. Rescheduling a path replaces its timer.
// Calls after Stop are ignored.
func (j *Janitor) Schedule(path string, delay time.Duration) {
	if path == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopped {
		return
	}
	if existing, ok := j.timers[path]; ok {
		existing.timer.Stop()
	}
	j.seq++
	id := j.seq
	j.timers[path] = scheduled{timer: time.AfterFunc(delay, func() { j.fire(path, id) }), id: id}
}

func (j *Janitor) fire(path string, id uint64) {
	j.mu.Lock()
	if current, ok := j.timers[path]; !ok || current.id != id || j.stopped {
		j.mu.Unlock()
		return
	}
	delete(j.timers, path)
	j.mu.Unlock()

	if err := j.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(j.logger, "deferred artifact deletion failed", "artifact_delete_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check download_dir permissions"),
			logging.String(logging.FieldImpact, "the retention sweeper will retry"),
		)
		return
	}
	j.logger.Info("deleted expired artifact",
		logging.String("path", path),
		logging.String(logging.FieldEventType, "artifact_deleted"),
	)
}

// Cancel drops a pending deletion.
func (j *Janitor) Cancel(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry, ok := j.timers[path]; ok {
		entry.timer.Stop()
		delete(j.timers, path)
	}
}

// Pending returns the number of scheduled deletions.
func (j *Janitor) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.timers)
}

// Stop cancels every pending deletion.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopped = true
	for path, entry := range j.timers {
		entry.timer.Stop()
		delete(j.timers, path)
	}
}
