package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Format is one encoding reported by yt-dlp's JSON dump.
type Format struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	TBR            float64 `json:"tbr"`
	VBR            float64 `json:"vbr"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Protocol       string  `json:"protocol"`
}

func (f Format) hasVideo() bool {
	if f.VCodec == "none" {
		return false
	}
	return f.VCodec != "" || f.Height > 0
}

func (f Format) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// bitrate is the combined bitrate in kbps.
func (f Format) bitrate() float64 {
	if f.TBR > 0 {
		return f.TBR
	}
	return f.VBR + f.ABR
}

func (f Format) reportedSize() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// VideoMetadata is the subset of yt-dlp's info dict reelpull uses.
type VideoMetadata struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Uploader     string   `json:"uploader"`
	Duration     float64  `json:"duration"`
	Thumbnail    string   `json:"thumbnail"`
	WebpageURL   string   `json:"webpage_url"`
	ExtractorKey string   `json:"extractor_key"`
	Formats      []Format `json:"formats"`

	Qualities []QualityOption `json:"-"`
}

// FetchMetadata runs yt-dlp in JSON dump mode and synthesizes quality options
// from the reported formats.
func (c *Client) FetchMetadata(ctx context.Context, rawURL string) (*VideoMetadata, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, fmt.Errorf("metadata: url required")
	}
	if c.metadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.metadataTimeout)
		defer cancel()
	}

	args := []string{"--dump-single-json", "--no-playlist", "--no-warnings", "--", target}
	var stdout strings.Builder
	stderr := newTailBuffer(stderrExcerptLimit)
	err := c.exec.Run(ctx, c.binary, args, func(line Line) {
		if line.Stream == Stdout {
			stdout.WriteString(line.Text)
			stdout.WriteByte('\n')
			return
		}
		stderr.WriteLine(line.Text)
	})
	if err != nil {
		return nil, c.toolError(ctx, "metadata", err, stderr.String())
	}

	payload := lastJSONObject(stdout.String())
	if payload == "" {
		return nil, &ExtractionError{Operation: "metadata", ExitCode: 0, Stderr: stderr.String(), Err: fmt.Errorf("no JSON record on stdout")}
	}
	var meta VideoMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	meta.Qualities = SynthesizeQualities(meta.Formats, meta.Duration)
	return &meta, nil
}

// lastJSONObject returns the last stdout line that looks like a JSON object.
// Some extractors print notices to stdout ahead of the dump.
func lastJSONObject(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			return line
		}
	}
	return ""
}
