package ytdlp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ArtifactSource records which signal located an artifact.
type ArtifactSource string

const (
	SourcePrinted     ArtifactSource = "printed"
	SourceMerged      ArtifactSource = "merged"
	SourceDestination ArtifactSource = "destination"
	SourceScan        ArtifactSource = "scan"
)

// Artifact is a validated download result.
type Artifact struct {
	Path   string
	Size   int64
	Type   string
	Source ArtifactSource
}

const preferredExt = ".mp4"

var videoExts = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".m4v": {}, ".avi": {}, ".flv": {}, ".ts": {}, ".3gp": {},
}

var incompleteSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

var sidecarExts = map[string]struct{}{
	".json": {}, ".description": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {},
	".vtt": {}, ".srt": {}, ".ass": {}, ".lrc": {}, ".ttml": {}, ".srv1": {}, ".srv2": {}, ".srv3": {}, ".json3": {},
}

var placeholderExts = map[string]struct{}{
	"": {}, ".unknown_video": {}, ".unknown": {}, ".na": {}, ".part": {}, ".ytdl": {}, ".temp": {}, ".tmp": {},
}

// containerFamilies groups extensions that share a container signature, so a
// .m4a sniffed as mp4 is not renamed.
var containerFamilies = map[string]string{
	".mp4": "isobmff", ".m4v": "isobmff", ".m4a": "isobmff", ".mov": "isobmff", ".3gp": "isobmff",
	".webm": "matroska", ".mkv": "matroska", ".mka": "matroska",
	".ogg": "ogg", ".oga": "ogg", ".opus": "ogg",
	".mp3": "mp3", ".aac": "aac", ".flac": "flac", ".wav": "wav",
	".flv": "flv", ".avi": "avi", ".ts": "mpegts",
}

// ResolveArtifact applies the priority chain: printed path, merge target,
// download destination, then a scan of dir for files named after key. A
// signal only wins when the file it names exists.
func ResolveArtifact(acc *OutputAccumulator, dir, key string) (string, ArtifactSource, error) {
	if acc != nil {
		for _, candidate := range []struct {
			path   string
			source ArtifactSource
		}{
			{acc.Printed, SourcePrinted},
			{acc.Merged, SourceMerged},
			{acc.Destination, SourceDestination},
		} {
			if candidate.path == "" {
				continue
			}
			path := candidate.path
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			if isRegularFile(path) {
				return path, candidate.source, nil
			}
		}
	}

	path, err := scanForArtifact(dir, key)
	if err != nil {
		return "", "", err
	}
	if path == "" {
		return "", "", &ArtifactNotFoundError{Dir: dir, Key: key}
	}
	return path, SourceScan, nil
}

type scanEntry struct {
	path string
	ext  string
	size int64
}

func scanForArtifact(dir, key string) (string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	entries := make([]scanEntry, 0, len(items))
	for _, item := range items {
		if item.IsDir() || !strings.HasPrefix(item.Name(), key) {
			continue
		}
		lower := strings.ToLower(item.Name())
		if isIncomplete(lower) {
			continue
		}
		ext := filepath.Ext(lower)
		if _, sidecar := sidecarExts[ext]; sidecar {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, scanEntry{path: filepath.Join(dir, item.Name()), ext: ext, size: info.Size()})
	}
	if len(entries) == 0 {
		return "", nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := scanRank(entries[i].ext), scanRank(entries[j].ext)
		if ri != rj {
			return ri < rj
		}
		return entries[i].size > entries[j].size
	})
	return entries[0].path, nil
}

func scanRank(ext string) int {
	if ext == preferredExt {
		return 0
	}
	if _, ok := videoExts[ext]; ok {
		return 1
	}
	return 2
}

func isIncomplete(name string) bool {
	for _, suffix := range incompleteSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".part-frag")
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ValidateArtifact rejects empty files and repairs missing, placeholder, or
// wrong extensions using the file's leading bytes. The returned artifact
// carries the final path.
func ValidateArtifact(path string, source ArtifactSource) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	if info.Size() == 0 {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove empty artifact: %w", removeErr)
		}
		return nil, &EmptyArtifactError{Path: path}
	}

	final := path
	if sniffed, ok := sniffMediaExt(path); ok {
		current := strings.ToLower(filepath.Ext(path))
		_, placeholder := placeholderExts[current]
		if placeholder || !sameFamily(current, sniffed) {
			renamed := strings.TrimSuffix(path, filepath.Ext(path)) + sniffed
			if err := os.Rename(path, renamed); err != nil {
				return nil, fmt.Errorf("rename artifact to %s: %w", sniffed, err)
			}
			final = renamed
		}
	}

	return &Artifact{
		Path:   final,
		Size:   info.Size(),
		Type:   FileType(final),
		Source: source,
	}, nil
}

// FileType is the lowercase extension without the dot.
func FileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// sniffMediaExt reports the extension implied by the file signature, only for
// audio and video types.
func sniffMediaExt(path string) (string, bool) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil || mtype == nil {
		return "", false
	}
	for m := mtype; m != nil; m = m.Parent() {
		mime := m.String()
		if strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/") {
			ext := strings.ToLower(mtype.Extension())
			return ext, ext != ""
		}
	}
	return "", false
}

func sameFamily(a, b string) bool {
	if a == b {
		return true
	}
	fa, okA := containerFamilies[a]
	fb, okB := containerFamilies[b]
	return okA && okB && fa == fb
}
