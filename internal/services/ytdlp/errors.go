package ytdlp

import (
	"fmt"
	"strings"

	"reelpull/internal/services"
)

// ExtractionError reports a non-zero yt-dlp exit.
type ExtractionError struct {
	Operation string
	ExitCode  int
	Stderr    string
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("yt-dlp %s exited with code %d", e.Operation, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("yt-dlp %s failed: %v", e.Operation, e.Err)
	}
	if excerpt := strings.TrimSpace(e.Stderr); excerpt != "" {
		msg += ": " + excerpt
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrExternalTool}
	}
	return []error{services.ErrExternalTool, e.Err}
}

// ArtifactNotFoundError means yt-dlp exited cleanly but no output file could
// be recovered from its output or the target directory.
type ArtifactNotFoundError struct {
	Dir string
	Key string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("no artifact for %q found in %s", e.Key, e.Dir)
}

func (e *ArtifactNotFoundError) Unwrap() error { return services.ErrNotFound }

// EmptyArtifactError means the recovered file had zero bytes. The file has
// already been removed when this error is returned.
type EmptyArtifactError struct {
	Path string
}

func (e *EmptyArtifactError) Error() string {
	return fmt.Sprintf("artifact %s is empty", e.Path)
}

func (e *EmptyArtifactError) Unwrap() error { return services.ErrExternalTool }

// SubtitleUnavailableError is the expected empty result when the requested
// language or format does not exist for a video.
type SubtitleUnavailableError struct {
	Lang   string
	Format string
	Detail string
}

func (e *SubtitleUnavailableError) Error() string {
	msg := fmt.Sprintf("subtitles %s/%s unavailable", e.Lang, e.Format)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *SubtitleUnavailableError) Unwrap() error { return services.ErrNotFound }

// ErrorKind classifications match services.Kind.
func (e *ExtractionError) ErrorKind() string { return "external_tool" }

func (e *ArtifactNotFoundError) ErrorKind() string { return "not_found" }

func (e *EmptyArtifactError) ErrorKind() string { return "external_tool" }

func (e *SubtitleUnavailableError) ErrorKind() string { return "not_found" }
