package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelpull/internal/api"
	"reelpull/internal/config"
	"reelpull/internal/ipc"
	"reelpull/internal/jobs"
	"reelpull/internal/logging"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/testsupport"
)

type fakeDaemon struct {
	mu        sync.Mutex
	submitted []api.SubmitRequest
	submitOut api.SubmitResponse
	jobs      []api.Job
	filter    jobs.Filter
}

func (f *fakeDaemon) Status(context.Context) api.DaemonStatus {
	return api.DaemonStatus{
		Running: true,
		PID:     4242,
		Scheduler: api.SchedulerStatus{
			Availability: "available",
			Tiers: []api.TierStatus{
				{Tier: "high", Concurrency: 5, Active: 1},
				{Tier: "mid", Concurrency: 3, Waiting: 2},
				{Tier: "low", Concurrency: 2, Paused: true, Waiting: 7},
			},
			Load: api.LoadStatus{CPUPercent: 91.5, MemoryPercent: 40, Overloaded: true},
		},
		JobCounts: map[string]int{"completed": 3, "queued": 2},
		Dependencies: []api.DependencyStatus{
			{Name: "yt-dlp", Command: "/usr/bin/yt-dlp", Available: true},
			{Name: "FFmpeg", Optional: true, Detail: "not found"},
		},
	}
}

func (f *fakeDaemon) Submit(_ context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.submitOut, nil
}

func (f *fakeDaemon) ListJobs(_ context.Context, filter jobs.Filter) ([]api.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.jobs, nil
}

func (f *fakeDaemon) DescribeJob(_ context.Context, id string) (*api.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID == id {
			return &job, nil
		}
	}
	return nil, nil
}

func (f *fakeDaemon) Metadata(_ context.Context, rawURL string) (api.MetadataResponse, error) {
	if strings.Contains(rawURL, "broken") {
		return api.MetadataResponse{}, errors.New("yt-dlp: unsupported url")
	}
	return api.MetadataResponse{
		ID:       "abc",
		Title:    "Launch Day",
		Uploader: "Space Channel",
		Duration: 95,
		Qualities: []ytdlp.QualityOption{
			{Key: "1080p", Label: "1080p", Ext: "mp4", BitrateKbps: 4500, SizeBytes: 53_000_000, RequiresPremium: true},
			{Key: "audio", Label: "Audio only", Ext: "m4a", BitrateKbps: 128, SizeBytes: 1_500_000, SizeEstimated: true, AudioOnly: true},
		},
	}, nil
}

func (f *fakeDaemon) Subtitles(context.Context, string) (api.SubtitleListResponse, error) {
	return api.SubtitleListResponse{Subtitles: []ytdlp.SubtitleDescriptor{
		{LangCode: "en", LangName: "English", Formats: []string{"vtt", "srt"}},
		{LangCode: "de", LangName: "German", Formats: []string{"vtt"}, Automatic: true},
	}}, nil
}

func (f *fakeDaemon) DownloadSubtitle(_ context.Context, req api.SubtitleDownloadRequest) (api.SubtitleDownloadResponse, error) {
	format := req.Format
	if format == "" {
		format = "srt"
	}
	return api.SubtitleDownloadResponse{Path: fmt.Sprintf("/data/%s/subtitles/clip.%s.%s", req.CallerID, req.Lang, format)}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *fakeDaemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("REELPULL_QUEUE_URL", "")
	t.Setenv("REDIS_URL", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	fake := &fakeDaemon{}
	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(base, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, fake, logging.NewNop())
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	time.Sleep(20 * time.Millisecond)

	return &cliTestEnv{cfg: cfg, daemon: fake, socketPath: socketPath, configPath: configPath}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndownload_dir = %q\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n",
		cfg.Paths.DownloadDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		"hunter2",
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
