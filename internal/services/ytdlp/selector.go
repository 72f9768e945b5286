package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// SelectorKind classifies a format selector token.
type SelectorKind int

const (
	SelectorBest SelectorKind = iota
	SelectorResolution
	SelectorAudio
	SelectorNative
	SelectorFormatID
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorResolution:
		return "resolution"
	case SelectorAudio:
		return "audio"
	case SelectorNative:
		return "native"
	case SelectorFormatID:
		return "format_id"
	default:
		return "best"
	}
}

// Selector is a parsed format selector.
type Selector struct {
	Raw     string
	Kind    SelectorKind
	Height  int
	Codec   string
	Bitrate int
}

const (
	bestExpression      = "bestvideo+bestaudio/best"
	bestAudioExpression = "bestaudio/best"
	mergeContainer      = "mp4"
)

var (
	resolutionPattern = regexp.MustCompile(`^(\d{3,4})p$`)
	audioPattern      = regexp.MustCompile(`^audio_([a-z0-9]+)_(\d{2,4})k?$`)
)

// ParseSelector classifies raw. Matching is case-insensitive for the token
// forms; native expressions and format ids are kept verbatim.
func ParseSelector(raw string) Selector {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	sel := Selector{Raw: trimmed}
	switch {
	case lower == "" || lower == "best":
		sel.Kind = SelectorBest
	case resolutionPattern.MatchString(lower):
		height, _ := strconv.Atoi(resolutionPattern.FindStringSubmatch(lower)[1])
		sel.Kind = SelectorResolution
		sel.Height = height
	case audioPattern.MatchString(lower):
		m := audioPattern.FindStringSubmatch(lower)
		bitrate, _ := strconv.Atoi(m[2])
		sel.Kind = SelectorAudio
		sel.Codec = m[1]
		sel.Bitrate = bitrate
	case strings.ContainsAny(trimmed, "+/"):
		sel.Kind = SelectorNative
	default:
		sel.Kind = SelectorFormatID
	}
	return sel
}

// Expression is the yt-dlp -f value for the selector.
func (s Selector) Expression() string {
	switch s.Kind {
	case SelectorResolution:
		h := strconv.Itoa(s.Height)
		return "bestvideo[height<=" + h + "]+bestaudio/best[height<=" + h + "]/best"
	case SelectorAudio:
		return bestAudioExpression
	case SelectorNative, SelectorFormatID:
		return s.Raw
	default:
		return bestExpression
	}
}

// DownloadArgs returns the format and post-processing arguments for a file
// download.
func (s Selector) DownloadArgs() []string {
	args := []string{"-f", s.Expression()}
	switch s.Kind {
	case SelectorResolution:
		args = append(args,
			"--merge-output-format", mergeContainer,
			"--remux-video", mergeContainer,
			"--embed-metadata",
			"--embed-thumbnail",
		)
	case SelectorAudio:
		args = append(args,
			"-x",
			"--audio-format", s.Codec,
			"--audio-quality", strconv.Itoa(s.Bitrate)+"K",
			"--embed-metadata",
		)
	case SelectorBest:
		args = append(args, "--merge-output-format", mergeContainer)
	}
	return args
}

// StreamArgs returns the format arguments for a stdout stream. Post-processing
// needs a seekable file, so only the format expression is passed.
func (s Selector) StreamArgs() []string {
	return []string{"-f", s.Expression()}
}

// ResolveSelector maps a raw selector straight to its download arguments.
func ResolveSelector(raw string) []string {
	return ParseSelector(raw).DownloadArgs()
}
