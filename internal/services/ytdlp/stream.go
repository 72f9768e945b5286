package ytdlp

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ProcessHandle is a running pass-through download. Read Stdout until EOF,
// then call Wait. Kill aborts the transfer.
type ProcessHandle struct {
	proc   Process
	stderr *tailBuffer
	ctx    context.Context
	client *Client

	waitOnce sync.Once
	waitErr  error
}

// Stdout is the media byte stream.
func (h *ProcessHandle) Stdout() io.ReadCloser {
	return h.proc.Stdout()
}

// Wait blocks until yt-dlp exits. A non-zero exit is an ExtractionError.
func (h *ProcessHandle) Wait() error {
	h.waitOnce.Do(func() {
		if err := h.proc.Wait(); err != nil {
			h.waitErr = h.client.toolError(h.ctx, "stream", err, h.stderr.String())
		}
	})
	return h.waitErr
}

// Kill terminates the subprocess.
func (h *ProcessHandle) Kill() error {
	return h.proc.Kill()
}

// StreamDownload starts yt-dlp writing the selected media to its stdout.
func (c *Client) StreamDownload(ctx context.Context, rawURL, selector string) (*ProcessHandle, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, errors.New("stream: url required")
	}
	args := ParseSelector(selector).StreamArgs()
	args = append(args, "--no-playlist", "--quiet", "--no-warnings", "-o", "-")
	args = append(args, c.ffmpegArgs()...)
	args = append(args, "--", target)

	stderr := newTailBuffer(stderrExcerptLimit)
	proc, err := c.exec.Start(ctx, c.binary, args, stderr)
	if err != nil {
		return nil, c.toolError(ctx, "stream", err, stderr.String())
	}
	return &ProcessHandle{proc: proc, stderr: stderr, ctx: ctx, client: c}, nil
}
