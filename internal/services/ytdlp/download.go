package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DownloadOptions carries per-call settings.
type DownloadOptions struct {
	// JobID is folded into the artifact key for traceability.
	JobID string
	// Progress receives yt-dlp's download percentage (0-100). It may go
	// backwards when yt-dlp fetches video and audio separately.
	Progress func(percent float64)
}

// Download fetches rawURL into outputDir using selector and returns the
// validated artifact.
func (c *Client) Download(ctx context.Context, rawURL, selector, outputDir string, opts DownloadOptions) (*Artifact, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, errors.New("download: url required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("download: output directory required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	key := c.keys.Next(opts.JobID)
	args := c.downloadArgs(ParseSelector(selector), filepath.Join(outputDir, key+".%(ext)s"), target)

	acc := NewOutputAccumulator()
	err := c.exec.Run(ctx, c.binary, args, func(line Line) {
		if acc.Observe(line) && opts.Progress != nil {
			opts.Progress(acc.Progress)
		}
	})
	if err != nil {
		return nil, c.toolError(ctx, "download", err, acc.Stderr())
	}

	path, source, err := ResolveArtifact(acc, outputDir, key)
	if err != nil {
		return nil, err
	}
	return ValidateArtifact(path, source)
}

func (c *Client) downloadArgs(sel Selector, template, target string) []string {
	args := sel.DownloadArgs()
	args = append(args,
		"--newline",
		"--no-playlist",
		"--no-quiet",
		"--no-mtime",
		"--print", "after_move:"+printMarker+"%(filepath)s",
		"-o", template,
	)
	args = append(args, c.ffmpegArgs()...)
	return append(args, "--", target)
}
