package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/logging"
)

// Result lists what a cleanup pass removed and what it could not.
type Result struct {
	Removed []string
	Errors  []Error
}

// Error pairs a path with its cleanup error.
type Error struct {
	Path  string
	Error error
}

// CleanStale removes regular files in dir once their download is stale.
// Files sharing a download key (the name up to the first dot) form one
// group, and a group goes only when its newest file is older than maxAge,
// so finished stream files of a download still being fetched or merged
// survive. Subdirectories are left alone.
func CleanStale(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) Result {
	result := Result{}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, Error{Path: dir, Error: err})
		}
		return result
	}

	type staleFile struct {
		path    string
		key     string
		modTime time.Time
	}
	files := make([]staleFile, 0, len(entries))
	newest := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, Error{Path: path, Error: err})
			continue
		}
		key := downloadKey(entry.Name())
		files = append(files, staleFile{path: path, key: key, modTime: info.ModTime()})
		if info.ModTime().After(newest[key]) {
			newest[key] = info.ModTime()
		}
	}

	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		if ctx.Err() != nil {
			return result
		}
		if !newest[file.key].Before(cutoff) {
			continue
		}
		path := file.path
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, Error{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale artifact",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "artifact_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check download_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale artifact",
				logging.String("path", path),
				logging.Duration("age", time.Since(file.modTime)),
				logging.String(logging.FieldEventType, "artifact_cleanup"),
			)
		}
	}
	return result
}

// downloadKey returns the name up to its first dot. Download keys never
// contain dots, so a key's final artifact, its per-stream files and their
// partial downloads all share it.
func downloadKey(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// ExpiryStore is the part of the job store the sweeper needs.
type ExpiryStore interface {
	Expired(ctx context.Context, now time.Time) ([]*jobs.Record, error)
	MarkExpired(ctx context.Context, id string) error
}

// Sweeper periodically enforces retention.
type Sweeper struct {
	Store        ExpiryStore
	AnonymousDir string
	AnonymousTTL time.Duration
	Interval     time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// SweepOnce removes expired recorded artifacts, then stale anonymous files.
func (s *Sweeper) SweepOnce(ctx context.Context) Result {
	logger := logging.NewComponentLogger(s.Logger, "sweeper")
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	result := Result{}

	if s.Store != nil {
		records, err := s.Store.Expired(ctx, now())
		if err != nil {
			result.Errors = append(result.Errors, Error{Path: "jobs", Error: err})
			logging.WarnWithContext(logger, "expired job query failed", "retention_query_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the job database"),
			)
		}
		for _, record := range records {
			if err := os.Remove(record.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, Error{Path: record.ArtifactPath, Error: err})
				continue
			}
			if err := s.Store.MarkExpired(ctx, record.ID); err != nil {
				result.Errors = append(result.Errors, Error{Path: record.ArtifactPath, Error: err})
				continue
			}
			result.Removed = append(result.Removed, record.ArtifactPath)
			logger.Info("expired artifact removed",
				logging.String(logging.FieldJobID, record.ID),
				logging.String("path", record.ArtifactPath),
				logging.String(logging.FieldEventType, "artifact_expired"),
			)
		}
	}

	if s.AnonymousDir != "" && s.AnonymousTTL > 0 {
		stale := CleanStale(ctx, s.AnonymousDir, s.AnonymousTTL, logger)
		result.Removed = append(result.Removed, stale.Removed...)
		result.Errors = append(result.Errors, stale.Errors...)
	}
	return result
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s.SweepOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// DirInfo describes one caller directory under the download root.
type DirInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Files   int       `json:"files"`
	Size    int64     `json:"size"`
}

// ListDirectories returns every caller directory in root with its usage.
func ListDirectories(root string) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		files, size := dirUsage(path)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Files:   files,
			Size:    size,
		})
	}
	return dirs, nil
}

func dirUsage(path string) (int, int64) {
	var (
		files int
		size  int64
	)
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			files++
			size += info.Size()
		}
		return nil
	})
	return files, size
}
