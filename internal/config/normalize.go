package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeQueue()
	c.normalizeEntitlements()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if value, ok := os.LookupEnv("REELPULL_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YtdlpBinary = strings.TrimSpace(c.Tools.YtdlpBinary)
	if value, ok := os.LookupEnv("REELPULL_YTDLP_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Tools.YtdlpBinary = strings.TrimSpace(value)
	}
	if c.Tools.YtdlpBinary == "" {
		c.Tools.YtdlpBinary = defaultYtdlpBinary
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	paths := make([]string, 0, len(c.Tools.FFmpegSearchPaths))
	for _, candidate := range c.Tools.FFmpegSearchPaths {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	c.Tools.FFmpegSearchPaths = paths
}

func (c *Config) normalizeQueue() {
	c.Queue.URL = strings.TrimSpace(c.Queue.URL)
	if c.Queue.URL == "" {
		if value, ok := os.LookupEnv("REELPULL_QUEUE_URL"); ok && strings.TrimSpace(value) != "" {
			c.Queue.URL = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("REDIS_URL"); ok {
			c.Queue.URL = strings.TrimSpace(value)
		}
	}
	if c.Queue.ReconnectInterval < 0 {
		c.Queue.ReconnectInterval = 0
	}
}

func (c *Config) normalizeEntitlements() {
	callers := make([]string, 0, len(c.Entitlements.PremiumCallers))
	seen := make(map[string]struct{}, len(c.Entitlements.PremiumCallers))
	for _, caller := range c.Entitlements.PremiumCallers {
		normalized := strings.TrimSpace(caller)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		callers = append(callers, normalized)
	}
	c.Entitlements.PremiumCallers = callers
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
