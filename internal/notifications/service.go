package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reelpull/internal/config"
)

const userAgent = "reelpull/0.1"

// JobEvent describes a finished job.
type JobEvent struct {
	JobID        string
	SourceURL    string
	CallerID     string
	Tier         string
	ArtifactPath string
	SizeBytes    int64
	ErrorMessage string
	ErrorCode    string
	Elapsed      time.Duration
}

// Service defines the notification surface used by the processor and CLI.
type Service interface {
	NotifyJobCompleted(ctx context.Context, event JobEvent) error
	NotifyJobFailed(ctx context.Context, event JobEvent) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
		onFailure:  cfg.Notifications.OnFailure,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
	onFailure  bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, event JobEvent) error {
	if !n.onComplete {
		return nil
	}
	message := fmt.Sprintf("Downloaded %s", strings.TrimSpace(event.SourceURL))
	if event.ArtifactPath != "" {
		message += fmt.Sprintf("\nFile: %s (%s)", event.ArtifactPath, humanize.IBytes(uint64(max(event.SizeBytes, 0))))
	}
	if event.Elapsed > 0 {
		message += fmt.Sprintf("\nTook %s", event.Elapsed.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "reelpull - Download Complete",
		message: message,
		tags:    eventTags(event, "completed"),
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, event JobEvent) error {
	if !n.onFailure {
		return nil
	}
	reason := strings.TrimSpace(event.ErrorMessage)
	if reason == "" {
		reason = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "reelpull - Download Failed",
		message:  fmt.Sprintf("Job %s failed for %s\n%s", event.JobID, strings.TrimSpace(event.SourceURL), reason),
		tags:     eventTags(event, "failed"),
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "reelpull - Test",
		message:  "Notification system test",
		tags:     []string{"reelpull", "test"},
		priority: "low",
	})
}

func eventTags(event JobEvent, outcome string) []string {
	tags := []string{"reelpull", outcome}
	if event.Tier != "" {
		tags = append(tags, event.Tier)
	}
	if event.ErrorCode != "" {
		tags = append(tags, event.ErrorCode)
	}
	return tags
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, JobEvent) error { return nil }
func (noopService) NotifyJobFailed(context.Context, JobEvent) error    { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
