package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var ffmpegVersionArgs = []string{"-version"}

// DefaultFFmpegPaths lists common install locations checked when ffmpeg is not on PATH.
func DefaultFFmpegPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	case "darwin":
		return []string{"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	default:
		return []string{"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg", "/snap/bin/ffmpeg"}
	}
}

// ResolveFFmpeg locates the ffmpeg binary yt-dlp should use for merging and
// audio extraction. The command is resolved via PATH first, then each fallback
// path in order. Absence is reported in the returned Status, never as an error:
// yt-dlp still works without ffmpeg, it only loses merge and remux support.
func ResolveFFmpeg(command string, fallbacks []string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Used by yt-dlp to merge, remux, and extract audio",
		Optional:    true,
	}

	name := strings.TrimSpace(command)
	if name == "" {
		name = "ffmpeg"
	}
	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Available = true
		result.Version = versions.lookup(resolved, ffmpegVersionArgs)
		return result
	}

	if len(fallbacks) == 0 {
		fallbacks = DefaultFFmpegPaths()
	}
	for _, candidate := range fallbacks {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = filepath.Clean(candidate)
			result.Available = true
			result.Version = versions.lookup(result.Command, ffmpegVersionArgs)
			return result
		}
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found on PATH or in %d fallback locations", name, len(fallbacks))
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
