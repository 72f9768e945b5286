package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"reelpull/internal/logging"
	"reelpull/internal/services"
)

const stderrExcerptLimit = 2048

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithFFmpegResolver sets how the ffmpeg location is discovered. The resolver
// runs at most once per client; an empty result means ffmpeg is unavailable.
func WithFFmpegResolver(resolve func() string) Option {
	return func(c *Client) {
		if resolve != nil {
			c.resolveFFmpeg = resolve
		}
	}
}

// WithMetadataTimeout bounds metadata and subtitle listing calls.
func WithMetadataTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.metadataTimeout = timeout
	}
}

// WithLogger attaches a logger for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "ytdlp")
	}
}

// WithClock replaces the time source used for artifact keys.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.keys.now = now
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	exec            Executor
	metadataTimeout time.Duration
	logger          *slog.Logger
	keys            *keySequence

	resolveFFmpeg func() string
	ffmpegOnce    sync.Once
	ffmpegPath    string
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:        binary,
		exec:          commandExecutor{},
		logger:        logging.NewNop(),
		keys:          &keySequence{now: time.Now},
		resolveFFmpeg: func() string { return "" },
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured yt-dlp executable.
func (c *Client) Binary() string {
	return c.binary
}

func (c *Client) ffmpegLocation() string {
	c.ffmpegOnce.Do(func() {
		c.ffmpegPath = strings.TrimSpace(c.resolveFFmpeg())
		if c.ffmpegPath == "" {
			logging.WarnWithContext(c.logger, "ffmpeg not found; merges and audio extraction may fail", "ffmpeg_missing",
				logging.String(logging.FieldErrorHint, "install ffmpeg or set tools.ffmpeg_binary"),
				logging.String(logging.FieldImpact, "formats needing a merge fall back to single-file streams"),
			)
		}
	})
	return c.ffmpegPath
}

func (c *Client) ffmpegArgs() []string {
	if location := c.ffmpegLocation(); location != "" {
		return []string{"--ffmpeg-location", location}
	}
	return nil
}

// toolError converts an executor failure into an ExtractionError, tagging
// context deadline expiry as a timeout.
func (c *Client) toolError(ctx context.Context, operation string, err error, stderr string) error {
	extErr := &ExtractionError{
		Operation: operation,
		ExitCode:  exitCode(err),
		Stderr:    strings.TrimSpace(stderr),
		Err:       err,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "extracting", operation, "deadline exceeded", extErr)
		}
		return fmt.Errorf("%w: %w", ctxErr, extErr)
	}
	return extErr
}

// keySequence produces strictly increasing millisecond keys so artifacts
// written in the same millisecond never collide.
type keySequence struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (k *keySequence) Next(jobID string) string {
	k.mu.Lock()
	stamp := k.now().UnixMilli()
	if stamp <= k.last {
		stamp = k.last + 1
	}
	k.last = stamp
	k.mu.Unlock()

	key := strconv.FormatInt(stamp, 10)
	if safe := strings.Trim(unsafeKeyChars.ReplaceAllString(jobID, "-"), "-"); safe != "" {
		if len(safe) > 48 {
			safe = safe[:48]
		}
		key += "-" + safe
	}
	return key
}
