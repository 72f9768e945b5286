package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// Requirement defines an external binary reelpull relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs are passed to the binary to make it print its version.
	// Empty skips the probe.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	if len(req.VersionArgs) > 0 {
		status.Version = versions.lookup(resolved, req.VersionArgs)
	}
	return status
}

// versionCache remembers probe output per binary until the file changes, so
// status polling does not spawn a process per request.
type versionCache struct {
	mu      sync.Mutex
	entries map[string]cachedVersion
}

type cachedVersion struct {
	modTime time.Time
	size    int64
	version string
}

var versions = &versionCache{entries: make(map[string]cachedVersion)}

func (c *versionCache) lookup(path string, args []string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	key := path + "\x00" + strings.Join(args, "\x00")

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.version
	}

	version := probeVersion(path, args)
	c.mu.Lock()
	c.entries[key] = cachedVersion{modTime: info.ModTime(), size: info.Size(), version: version}
	c.mu.Unlock()
	return version
}

func probeVersion(path string, args []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	return ParseVersion(string(out))
}

// ParseVersion extracts a version from tool output. yt-dlp prints the bare
// version; ffmpeg prints "ffmpeg version 7.1 Copyright ...".
func ParseVersion(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	if len(fields) == 1 {
		return fields[0]
	}
	return line
}
