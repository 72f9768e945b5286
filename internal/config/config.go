package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Tools locates the external extraction tool and its helpers.
type Tools struct {
	YtdlpBinary       string   `toml:"ytdlp_binary"`
	FFmpegBinary      string   `toml:"ffmpeg_binary"`
	FFmpegSearchPaths []string `toml:"ffmpeg_search_paths"`
	MetadataTimeout   int      `toml:"metadata_timeout"`
}

// Queue configures the tier broker and per-tier worker pools.
type Queue struct {
	URL               string `toml:"url"`
	HighConcurrency   int    `toml:"high_concurrency"`
	MidConcurrency    int    `toml:"mid_concurrency"`
	LowConcurrency    int    `toml:"low_concurrency"`
	BlockTimeout      int    `toml:"block_timeout"`
	ConnectTimeout    int    `toml:"connect_timeout"`
	ReconnectInterval int    `toml:"reconnect_interval"` // 0 keeps the startup-only connect
}

// LoadSettings contains host load sampling and adjustment thresholds.
type LoadSettings struct {
	SampleInterval  int     `toml:"sample_interval"`
	AdjustInterval  int     `toml:"adjust_interval"`
	OverloadPercent float64 `toml:"overload_percent"`
	SeverePercent   float64 `toml:"severe_percent"`
}

// Jobs contains per-job execution limits.
type Jobs struct {
	Timeout           int `toml:"timeout"`
	ErrorMessageLimit int `toml:"error_message_limit"`
}

// Retention controls artifact expiry per entitlement.
type Retention struct {
	PremiumDays         int `toml:"premium_days"`
	FreeDays            int `toml:"free_days"`
	AnonymousTTLMinutes int `toml:"anonymous_ttl_minutes"`
	SweepInterval       int `toml:"sweep_interval"`
}

// Entitlements maps caller identifiers to tiers when no external lookup is wired.
type Entitlements struct {
	PremiumCallers []string `toml:"premium_callers"`
}

// Notifications configures ntfy push messages for job outcomes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
	OnFailure      bool   `toml:"on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelpull.
//
// Configuration sections by subsystem:
//   - Paths: download, state, and log directories plus the API bind address
//   - Tools: yt-dlp and ffmpeg locations
//   - Queue: broker connection and tier concurrency
//   - Load: sampling cadence and overload thresholds
//   - Jobs: per-job deadline and error truncation
//   - Retention: artifact expiry per entitlement
//   - Entitlements: static premium caller list
//   - Notifications: ntfy topic and which outcomes to announce
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Queue         Queue         `toml:"queue"`
	Load          LoadSettings  `toml:"load"`
	Jobs          Jobs          `toml:"jobs"`
	Retention     Retention     `toml:"retention"`
	Entitlements  Entitlements  `toml:"entitlements"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelpull.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the SQLite job record store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reelpull.lock")
}

// SocketPath is the IPC socket used by the CLI.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "reelpull.sock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "reelpull.pid")
}

// QueueEnabled reports whether a broker connection string was configured.
func (c *Config) QueueEnabled() bool {
	return strings.TrimSpace(c.Queue.URL) != ""
}

// QueueConnectTimeout bounds the broker liveness probe.
func (c *Config) QueueConnectTimeout() time.Duration {
	return seconds(c.Queue.ConnectTimeout)
}

// MetadataTimeout bounds metadata and subtitle listing invocations.
func (c *Config) MetadataTimeout() time.Duration {
	return seconds(c.Tools.MetadataTimeout)
}

// JobTimeout is the per-job deadline; zero disables it.
func (c *Config) JobTimeout() time.Duration {
	return seconds(c.Jobs.Timeout)
}

// SampleInterval is the load sampling cadence.
func (c *Config) SampleInterval() time.Duration {
	return seconds(c.Load.SampleInterval)
}

// AdjustInterval is the tier adjustment cadence.
func (c *Config) AdjustInterval() time.Duration {
	return seconds(c.Load.AdjustInterval)
}

// SweepInterval is the expired artifact sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return seconds(c.Retention.SweepInterval)
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return seconds(c.Notifications.RequestTimeout)
}

// AnonymousTTL is how long anonymous artifacts are kept.
func (c *Config) AnonymousTTL() time.Duration {
	return time.Duration(c.Retention.AnonymousTTLMinutes) * time.Minute
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
