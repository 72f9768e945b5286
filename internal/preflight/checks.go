package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelpull/internal/config"
	"reelpull/internal/deps"
	"reelpull/internal/queue"
)

// CheckExtractor verifies that the yt-dlp binary resolves and answers
// --version within a few seconds.
func CheckExtractor(ctx context.Context, binary string) Result {
	const name = "yt-dlp"

	status := deps.CheckBinaries([]deps.Requirement{{Name: name, Command: binary}})[0]
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(checkCtx, status.Command, "--version").Output()
	if err != nil {
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			return Result{Name: name, Detail: "version probe timed out"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("version probe failed (%v)", err)}
	}
	version := strings.TrimSpace(string(output))
	if version == "" {
		version = "unknown version"
	}
	return Result{Name: name, Passed: true, Detail: version}
}

// CheckFFmpeg reports whether ffmpeg is available for merging. Absence
// passes with a warning detail since single-file formats still download.
func CheckFFmpeg(cfg *config.Config) Result {
	const name = "FFmpeg"

	status := deps.ResolveFFmpeg(cfg.Tools.FFmpegBinary, cfg.Tools.FFmpegSearchPaths)
	if !status.Available {
		return Result{Name: name, Passed: true, Detail: "not found; merged formats unavailable"}
	}
	return Result{Name: name, Passed: true, Detail: status.Command}
}

// CheckQueue opens the broker and runs one liveness probe.
func CheckQueue(ctx context.Context, rawURL string, timeout time.Duration) Result {
	const name = "Queue broker"

	if strings.TrimSpace(rawURL) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (direct processing)"}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	backend, err := queue.Open(rawURL, queue.Options{ConnectTimeout: timeout})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer backend.Close()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := backend.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeQueueError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config. The
// daemon status endpoint and the CLI share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtdlpBinary,
			Description: "Required for every download",
			VersionArgs: []string{"--version"},
		},
	})
	return append(statuses, deps.ResolveFFmpeg(cfg.Tools.FFmpegBinary, cfg.Tools.FFmpegSearchPaths))
}

func summarizeQueueError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "liveness probe timed out (broker unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "liveness probe timed out (broker unreachable)"
	}
	return err.Error()
}
