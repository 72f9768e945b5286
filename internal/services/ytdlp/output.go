package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// printMarker prefixes the final path yt-dlp prints after post-processing.
const printMarker = "REELPULL_FILE:"

var (
	mergerPattern      = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	destinationPattern = regexp.MustCompile(`^\[(?:download|ExtractAudio|VideoConvertor|VideoRemuxer)\] Destination: (.+)$`)
	alreadyPattern     = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
	progressPattern    = regexp.MustCompile(`^\[download\]\s+(\d{1,3}(?:\.\d+)?)%`)
	subtitlePattern    = regexp.MustCompile(`^\[info\] Writing video subtitles to: (.+)$`)
)

// OutputAccumulator collects the signals the artifact resolver needs from a
// download's output. Feed it every line in order; it is not safe for
// concurrent use, which Executor.Run never requires.
type OutputAccumulator struct {
	Printed     string
	Merged      string
	Destination string
	Subtitle    string
	Progress    float64

	stderr *tailBuffer
}

// NewOutputAccumulator returns an empty accumulator.
func NewOutputAccumulator() *OutputAccumulator {
	return &OutputAccumulator{stderr: newTailBuffer(stderrExcerptLimit)}
}

// Observe records one line. It reports true when the line advanced progress.
func (a *OutputAccumulator) Observe(line Line) bool {
	text := strings.TrimRight(line.Text, "\r")
	trimmed := strings.TrimSpace(text)
	if line.Stream == Stderr {
		a.stderr.WriteLine(trimmed)
	}
	if trimmed == "" {
		return false
	}

	if rest, ok := strings.CutPrefix(trimmed, printMarker); ok {
		if path := strings.TrimSpace(rest); path != "" && path != "NA" {
			a.Printed = path
		}
		return false
	}
	if m := mergerPattern.FindStringSubmatch(trimmed); m != nil {
		a.Merged = m[1]
		return false
	}
	if m := destinationPattern.FindStringSubmatch(trimmed); m != nil {
		a.Destination = strings.TrimSpace(m[1])
		return false
	}
	if m := alreadyPattern.FindStringSubmatch(trimmed); m != nil {
		a.Destination = strings.TrimSpace(m[1])
		return false
	}
	if m := subtitlePattern.FindStringSubmatch(trimmed); m != nil {
		a.Subtitle = strings.TrimSpace(m[1])
		return false
	}
	if m := progressPattern.FindStringSubmatch(trimmed); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil || percent < 0 || percent > 100 {
			return false
		}
		a.Progress = percent
		return true
	}
	return false
}

// Stderr returns the bounded tail of the diagnostic stream.
func (a *OutputAccumulator) Stderr() string {
	return a.stderr.String()
}
