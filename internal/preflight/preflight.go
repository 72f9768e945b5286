package preflight

import (
	"context"

	"reelpull/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckExtractor(ctx, cfg.Tools.YtdlpBinary),
		CheckFFmpeg(cfg),
	}

	// Broker (only when configured)
	if cfg.QueueEnabled() {
		results = append(results, CheckQueue(ctx, cfg.Queue.URL, cfg.QueueConnectTimeout()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
