package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelpull/internal/api"
	"reelpull/internal/ipc"
	"reelpull/internal/jobs"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid 4242)")
	requireContains(t, out, "cpu 91.5%")
	requireContains(t, out, "Low")
	requireContains(t, out, "Ready (command: /usr/bin/yt-dlp)")
	requireContains(t, out, "[WARN] not found")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"--json", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status json: %v", err)
	}
	if status.PID != 4242 || len(status.Scheduler.Tiers) != 3 {
		t.Fatalf("unexpected status json: %+v", status)
	}
}

func TestSubmitCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.submitOut = api.SubmitResponse{JobID: "job-9", Queued: true, Tier: "high", EstimatedWaitSeconds: 10}

	out, _, err := runCLI(t, []string{"submit", "https://example.com/v", "--caller", "vip", "-q", "720p", "--free-days", "3"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued job job-9 on high tier (estimated wait 10s)")

	env.daemon.mu.Lock()
	got := env.daemon.submitted[0]
	env.daemon.mu.Unlock()
	if got.SourceURL != "https://example.com/v" || got.CallerID != "vip" || got.QualityKey != "720p" || got.Policy.FreeDays != 3 {
		t.Fatalf("unexpected forwarded request: %+v", got)
	}
}

func TestSubmitCommandReportsDirectFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.submitOut = api.SubmitResponse{
		JobID:  "job-3",
		Tier:   "mid",
		Result: &api.JobResult{Status: string(jobs.StatusFailed), ErrorMessage: "video unavailable"},
	}

	_, _, err := runCLI(t, []string{"submit", "https://example.com/gone"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "video unavailable") {
		t.Fatalf("expected failure to surface, got %v", err)
	}

	env.daemon.submitOut = api.SubmitResponse{
		JobID:  "job-4",
		Tier:   "mid",
		Result: &api.JobResult{Status: string(jobs.StatusCompleted), ArtifactPath: "/data/a.mp4", FileType: "mp4", FileSizeBytes: 2048},
	}
	out, _, err := runCLI(t, []string{"submit", "https://example.com/ok"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Job job-4 completed: /data/a.mp4 (mp4, 2.0 KiB)")
}

func TestJobsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.jobs = []api.Job{
		{ID: "job-1", Status: "extracting", Tier: "mid", Progress: 42, SourceURL: "https://example.com/" + strings.Repeat("x", 80)},
		{ID: "job-2", Status: "failed", Tier: "low", CallerID: "bob", ErrorMessage: "boom", ErrorCode: "external_tool"},
	}

	out, _, err := runCLI(t, []string{"jobs", "list", "--status", "failed", "--status", "extracting", "--caller", "bob", "-n", "5"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "job-1")
	requireContains(t, out, "Extracting")
	requireContains(t, out, "42%")
	requireContains(t, out, "…")

	env.daemon.mu.Lock()
	filter := env.daemon.filter
	env.daemon.mu.Unlock()
	if len(filter.Statuses) != 2 || filter.CallerID != "bob" || filter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", filter)
	}

	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}

	out, _, err = runCLI(t, []string{"jobs", "show", "job-2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Error kind:")
	requireContains(t, out, "External Tool")
	requireContains(t, out, "bob")

	if _, _, err := runCLI(t, []string{"jobs", "show", "missing"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for missing job")
	}
}

func TestInfoCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"info", "https://example.com/v"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "Launch Day")
	requireContains(t, out, "1m35s")
	requireContains(t, out, "1080p")
	requireContains(t, out, "~1.4 MiB")

	if _, _, err := runCLI(t, []string{"info", "https://example.com/broken"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected metadata error")
	}
}

func TestSubsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"subs", "list", "https://example.com/v"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("subs list: %v", err)
	}
	requireContains(t, out, "English")
	requireContains(t, out, "vtt, srt")

	out, _, err = runCLI(t, []string{"subs", "get", "https://example.com/v", "--lang", "de", "--caller", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("subs get: %v", err)
	}
	requireContains(t, out, "Saved subtitle to /data/alice/subtitles/clip.de.srt")
}

func TestCommandsWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(filepath.Dir(env.socketPath), "absent.sock")

	_, _, err := runCLI(t, []string{"jobs", "list"}, missing, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "reelpull daemon start") {
		t.Fatalf("expected start hint, got %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("offline status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "No jobs recorded")
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "********")
	if strings.Contains(out, "hunter2") {
		t.Fatalf("api token leaked: %s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify without topic: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	var titles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles = append(titles, r.Header.Get("Title"))
	}))
	defer srv.Close()

	content, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	content = append(content, []byte(fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", srv.URL+"/reelpull"))...)
	if err := os.WriteFile(env.configPath, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err = runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if len(titles) != 1 || titles[0] != "reelpull - Test" {
		t.Fatalf("unexpected ntfy requests: %v", titles)
	}
}
