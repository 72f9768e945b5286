package jobs

import (
	"database/sql"
	"errors"
	"time"

	"reelpull/internal/tier"
)

const recordColumns = "id, source_url, format_selector, quality_key, caller_id, tier, status, progress, error_message, error_code, artifact_path, file_size_bytes, file_type, expires_at, created_at, updated_at, finished_at"

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id             string
		sourceURL      string
		formatSelector string
		qualityKey     sql.NullString
		callerID       sql.NullString
		tierName       string
		statusStr      string
		progress       sql.NullFloat64
		errorMessage   sql.NullString
		errorCode      sql.NullString
		artifactPath   sql.NullString
		fileSize       sql.NullInt64
		fileType       sql.NullString
		expiresRaw     sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		finishedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourceURL,
		&formatSelector,
		&qualityKey,
		&callerID,
		&tierName,
		&statusStr,
		&progress,
		&errorMessage,
		&errorCode,
		&artifactPath,
		&fileSize,
		&fileType,
		&expiresRaw,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:             id,
		SourceURL:      sourceURL,
		FormatSelector: formatSelector,
		QualityKey:     qualityKey.String,
		CallerID:       callerID.String,
		Tier:           tier.Tier(tierName),
		Status:         Status(statusStr),
		Progress:       progress.Float64,
		ErrorMessage:   errorMessage.String,
		ErrorCode:      errorCode.String,
		ArtifactPath:   artifactPath.String,
		FileSizeBytes:  fileSize.Int64,
		FileType:       fileType.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if expiresRaw.Valid {
		if expires, err := parseTimeString(expiresRaw.String); err == nil {
			record.ExpiresAt = &expires
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
