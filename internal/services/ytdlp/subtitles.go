package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"reelpull/internal/language"
)

// SubtitleDescriptor is one language row from yt-dlp's subtitle listing.
type SubtitleDescriptor struct {
	LangCode  string   `json:"lang_code"`
	LangName  string   `json:"lang_name"`
	Formats   []string `json:"formats"`
	Automatic bool     `json:"automatic"`
}

var (
	subtitleSectionPattern = regexp.MustCompile(`^\[info\] Available (subtitles|automatic captions) for `)
	noSubtitlesPattern     = regexp.MustCompile(`(?i)(has no subtitles|has no automatic captions|there are no subtitles|no subtitles found|no subtitles)`)
	unavailablePattern     = regexp.MustCompile(`(?i)(requested format is not available|format not available|no subtitles|there are no subtitles for the requested languages)`)
)

// ListSubtitles lists manual and automatic subtitle tracks. A video without
// subtitles yields an empty slice and no error.
func (c *Client) ListSubtitles(ctx context.Context, rawURL string) ([]SubtitleDescriptor, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, errors.New("subtitles: url required")
	}
	if c.metadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.metadataTimeout)
		defer cancel()
	}

	args := []string{"--list-subs", "--skip-download", "--no-playlist", "--no-warnings", "--", target}
	var lines []string
	stderr := newTailBuffer(stderrExcerptLimit)
	noSubs := false
	err := c.exec.Run(ctx, c.binary, args, func(line Line) {
		if noSubtitlesPattern.MatchString(line.Text) {
			noSubs = true
		}
		if line.Stream == Stderr {
			stderr.WriteLine(line.Text)
			return
		}
		lines = append(lines, line.Text)
	})
	if err != nil {
		if noSubs {
			return []SubtitleDescriptor{}, nil
		}
		return nil, c.toolError(ctx, "list-subs", err, stderr.String())
	}
	return ParseSubtitleList(lines), nil
}

// ParseSubtitleList parses the --list-subs report. Each section starts with an
// "[info] Available ..." line followed by a "Language ..." header and one row
// per language; the trailing comma-separated tokens are the formats.
func ParseSubtitleList(lines []string) []SubtitleDescriptor {
	result := []SubtitleDescriptor{}
	inTable := false
	automatic := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := subtitleSectionPattern.FindStringSubmatch(line); m != nil {
			automatic = m[1] == "automatic captions"
			inTable = false
			continue
		}
		if line == "" || strings.HasPrefix(line, "[") {
			inTable = false
			continue
		}
		if strings.HasPrefix(line, "Language ") || line == "Language" {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if desc, ok := parseSubtitleRow(line, automatic); ok {
			result = append(result, desc)
		}
	}
	return result
}

func parseSubtitleRow(line string, automatic bool) (SubtitleDescriptor, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return SubtitleDescriptor{}, false
	}
	// Formats run from the end backwards: the last token, then every token
	// that ends with a comma.
	end := len(fields) - 1
	start := end
	for start-1 > 0 && strings.HasSuffix(fields[start-1], ",") {
		start--
	}
	formats := make([]string, 0, end-start+1)
	for _, token := range fields[start:] {
		if f := strings.TrimSuffix(token, ","); f != "" {
			formats = append(formats, f)
		}
	}
	code := fields[0]
	name := strings.Join(fields[1:start], " ")
	if name == "" {
		name = language.DisplayName(code)
	}
	return SubtitleDescriptor{LangCode: code, LangName: name, Formats: formats, Automatic: automatic}, true
}

// DownloadSubtitle writes one subtitle track to outputDir as
// baseName.<lang>.<ext> and returns its path.
func (c *Client) DownloadSubtitle(ctx context.Context, rawURL, lang, format, outputDir, baseName string) (string, error) {
	target := NormalizeURL(rawURL)
	lang = strings.TrimSpace(lang)
	format = strings.TrimSpace(format)
	if target == "" || lang == "" {
		return "", errors.New("subtitle download: url and language required")
	}
	if format == "" {
		format = "vtt"
	}
	if strings.TrimSpace(baseName) == "" {
		baseName = c.keys.Next("subs")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", format,
		"--no-playlist",
		"-o", filepath.Join(outputDir, baseName+".%(ext)s"),
		"--", target,
	}

	acc := NewOutputAccumulator()
	unavailable := ""
	err := c.exec.Run(ctx, c.binary, args, func(line Line) {
		acc.Observe(line)
		if unavailable == "" && unavailablePattern.MatchString(line.Text) {
			unavailable = strings.TrimSpace(line.Text)
		}
	})
	if unavailable != "" {
		return "", &SubtitleUnavailableError{Lang: lang, Format: format, Detail: unavailable}
	}
	if err != nil {
		return "", c.toolError(ctx, "subtitle", err, acc.Stderr())
	}

	if acc.Subtitle != "" {
		path := acc.Subtitle
		if !filepath.IsAbs(path) {
			path = filepath.Join(outputDir, path)
		}
		if isRegularFile(path) {
			return path, nil
		}
	}
	if path := scanForSubtitle(outputDir, baseName, lang, format); path != "" {
		return path, nil
	}
	return "", &ArtifactNotFoundError{Dir: outputDir, Key: baseName + "." + lang}
}

func scanForSubtitle(dir, baseName, lang, format string) string {
	items, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	prefix := baseName + "." + lang
	anyFormat := format == "best" || strings.Contains(format, "/")
	var matches []string
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasPrefix(name, prefix) || isIncomplete(strings.ToLower(name)) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if anyFormat {
			if _, sidecar := sidecarExts[ext]; !sidecar {
				continue
			}
		} else if ext != "."+strings.ToLower(format) {
			continue
		}
		matches = append(matches, filepath.Join(dir, name))
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}
