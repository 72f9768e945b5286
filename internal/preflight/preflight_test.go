package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelpull/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCheckExtractor_Version(t *testing.T) {
	result := CheckExtractor(context.Background(), writeScript(t, "echo 2025.01.15"))
	if !result.Passed || result.Detail != "2025.01.15" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckExtractor_Missing(t *testing.T) {
	result := CheckExtractor(context.Background(), "clearly-not-present-yt-dlp")
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestCheckExtractor_Fails(t *testing.T) {
	result := CheckExtractor(context.Background(), writeScript(t, "exit 3"))
	if result.Passed {
		t.Fatal("expected failure when --version exits non-zero")
	}
}

func TestCheckQueue(t *testing.T) {
	if r := CheckQueue(context.Background(), "", time.Second); !r.Passed {
		t.Fatalf("empty url should pass as disabled: %+v", r)
	}
	if r := CheckQueue(context.Background(), "memory://", time.Second); !r.Passed {
		t.Fatalf("memory backend should be reachable: %+v", r)
	}
	if r := CheckQueue(context.Background(), "redis://127.0.0.1:1/0", 200*time.Millisecond); r.Passed {
		t.Fatalf("expected closed port to fail: %+v", r)
	}
}

func TestRunAllUsesConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected four checks without a broker, got %d", len(results))
	}
	for _, r := range results[:2] {
		if !r.Passed {
			t.Fatalf("directory check failed: %+v", r)
		}
	}
	if failed := Failed(results); len(failed) > 1 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.YtdlpBinary = "clearly-not-present-yt-dlp"
	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected two dependency statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing yt-dlp to be unavailable")
	}
	if !statuses[1].Optional {
		t.Fatal("ffmpeg should be optional")
	}
}
