package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLoad(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.YtdlpBinary) == "" {
		return errors.New("tools.ytdlp_binary must be set")
	}
	return ensurePositiveMap(map[string]int{
		"tools.metadata_timeout": c.Tools.MetadataTimeout,
	})
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.high_concurrency": c.Queue.HighConcurrency,
		"queue.mid_concurrency":  c.Queue.MidConcurrency,
		"queue.low_concurrency":  c.Queue.LowConcurrency,
		"queue.block_timeout":    c.Queue.BlockTimeout,
		"queue.connect_timeout":  c.Queue.ConnectTimeout,
	}); err != nil {
		return err
	}
	if c.Queue.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Queue.URL)
	if err != nil {
		return fmt.Errorf("queue.url: %w", err)
	}
	switch parsed.Scheme {
	case "redis", "rediss", "unix", "memory":
	default:
		return fmt.Errorf("queue.url scheme %q is not supported (use redis://, rediss://, unix://, or memory://)", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateLoad() error {
	if err := ensurePositiveMap(map[string]int{
		"load.sample_interval": c.Load.SampleInterval,
		"load.adjust_interval": c.Load.AdjustInterval,
	}); err != nil {
		return err
	}
	if c.Load.OverloadPercent <= 0 || c.Load.OverloadPercent > 100 {
		return errors.New("load.overload_percent must be between 0 and 100")
	}
	if c.Load.SeverePercent < c.Load.OverloadPercent || c.Load.SeverePercent > 100 {
		return errors.New("load.severe_percent must be between load.overload_percent and 100")
	}
	return nil
}

func (c *Config) validateRetention() error {
	return ensurePositiveMap(map[string]int{
		"retention.premium_days":          c.Retention.PremiumDays,
		"retention.free_days":             c.Retention.FreeDays,
		"retention.anonymous_ttl_minutes": c.Retention.AnonymousTTLMinutes,
		"retention.sweep_interval":        c.Retention.SweepInterval,
	})
}

func (c *Config) validateJobs() error {
	if c.Jobs.Timeout < 0 {
		return errors.New("jobs.timeout must be zero (disabled) or positive")
	}
	if c.Jobs.ErrorMessageLimit <= 0 {
		return errors.New("jobs.error_message_limit must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", c.Notifications.NtfyTopic)
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
