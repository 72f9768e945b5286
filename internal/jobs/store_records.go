package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelpull/internal/services"
)

// Create inserts a new record for req in the received state.
func (s *Store) Create(ctx context.Context, req Request) (*Record, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "job id required", nil)
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "source url required", nil)
	}
	timestamp := formatTime(s.now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, source_url, format_selector, quality_key, caller_id, tier,
            status, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.JobID,
		req.SourceURL,
		req.FormatSelector,
		nullableString(req.QualityKey),
		nullableString(req.CallerID),
		string(req.Tier),
		StatusReceived,
		0.0,
		timestamp,
		timestamp,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, services.Wrap(services.ErrValidation, "jobs", "create", "duplicate job id "+req.JobID, err)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, req.JobID)
}

// Get fetches a record. A missing record returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return record, nil
}

// Update applies patch to the record. Entering a terminal status stamps
// finished_at.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Empty() {
		return nil
	}
	now := formatTime(s.now())
	sets := []string{"updated_at = ?"}
	args := []any{now}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
		if patch.Status.Terminal() {
			add("finished_at", now)
		}
	}
	if patch.Progress != nil {
		add("progress", *patch.Progress)
	}
	if patch.ErrorMessage != nil {
		add("error_message", nullableString(*patch.ErrorMessage))
	}
	if patch.ErrorCode != nil {
		add("error_code", nullableString(*patch.ErrorCode))
	}
	if patch.ArtifactPath != nil {
		add("artifact_path", nullableString(*patch.ArtifactPath))
	}
	if patch.FileSizeBytes != nil {
		add("file_size_bytes", *patch.FileSizeBytes)
	}
	if patch.FileType != nil {
		add("file_type", nullableString(*patch.FileType))
	}
	if patch.ExpiresAt != nil {
		add("expires_at", formatTime(*patch.ExpiresAt))
	}
	args = append(args, id)

	res, err := s.execWithRetry(ctx, `UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "jobs", "update", "job "+id, nil)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses []Status
	CallerID string
	Limit    int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.CallerID != "" {
		where = append(where, "caller_id = ?")
		args = append(args, filter.CallerID)
	}
	query := `SELECT ` + recordColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.queryRecords(ctx, query, args...)
}

// Expired returns completed records with an artifact whose expiry is at or
// before now.
func (s *Store) Expired(ctx context.Context, now time.Time) ([]*Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM jobs
         WHERE status = ? AND artifact_path IS NOT NULL AND expires_at IS NOT NULL AND expires_at <= ?
         ORDER BY expires_at`,
		string(StatusCompleted), formatTime(now),
	)
}

// MarkExpired records that the artifact for id has been removed.
func (s *Store) MarkExpired(ctx context.Context, id string) error {
	return s.Update(ctx, id, Patch{Status: Ptr(StatusExpired), ArtifactPath: Ptr("")})
}

// FailInterrupted fails records that were received, extracting or finalizing
// when the daemon last stopped. Queued records are left for the broker to
// redeliver.
func (s *Store) FailInterrupted(ctx context.Context, message string) (int64, error) {
	now := formatTime(s.now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, progress = 0, error_message = ?, error_code = ?, updated_at = ?, finished_at = ?
         WHERE status IN (?, ?, ?)`,
		string(StatusFailed), message, "interrupted", now, now,
		string(StatusReceived), string(StatusExtracting), string(StatusFinalizing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// Counts returns the number of records per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
