package jobs_test

import (
	"errors"
	"testing"

	"reelpull/internal/jobs"
	"reelpull/internal/services"
	"reelpull/internal/services/ytdlp"
)

func TestTruncate(t *testing.T) {
	if got := jobs.Truncate("short", 500); got != "short" {
		t.Fatalf("unexpected truncate: %q", got)
	}
	if got := jobs.Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected truncate: %q", got)
	}
	// "é" is two bytes; cutting inside it backs off to the rune start.
	if got := jobs.Truncate("aé", 2); got != "a" {
		t.Fatalf("expected rune-safe truncate, got %q", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ytdlp.ExtractionError{Operation: "download", ExitCode: 1}, "external_tool"},
		{&ytdlp.ArtifactNotFoundError{Dir: "/tmp", Key: "k"}, "not_found"},
		{services.Wrap(services.ErrTimeout, "processor", "job", "deadline", nil), "timeout"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range tests {
		if got := jobs.ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, status := range []jobs.Status{jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusExpired} {
		if !status.Terminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	if jobs.StatusExtracting.Terminal() {
		t.Fatal("extracting is not terminal")
	}
}
