package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/tier"
)

// ErrUnavailable marks broker connectivity failures.
var ErrUnavailable = errors.New("queue backend unavailable")

// ErrMalformed marks a payload that could not be decoded. The entry is
// consumed and dropped.
var ErrMalformed = errors.New("malformed queue payload")

// DefaultPrefix namespaces the tier lists.
const DefaultPrefix = "reelpull:queue"

// Backend is a set of per-tier FIFO lists.
type Backend interface {
	// Ping verifies the broker is reachable.
	Ping(ctx context.Context) error
	// Enqueue appends req to the tier list.
	Enqueue(ctx context.Context, t tier.Tier, req jobs.Request) error
	// Dequeue pops the oldest request, waiting up to block. It returns nil
	// without error when nothing arrived in time.
	Dequeue(ctx context.Context, t tier.Tier, block time.Duration) (*jobs.Request, error)
	// Requeue returns a dequeued request to the head of the tier list so it
	// is the next one handed out.
	Requeue(ctx context.Context, t tier.Tier, req jobs.Request) error
	// Len reports the number of waiting requests.
	Len(ctx context.Context, t tier.Tier) (int64, error)
	Close() error
}

// Options configures Open.
type Options struct {
	Prefix         string
	ConnectTimeout time.Duration
}

// Open selects a backend from the URL scheme: redis, rediss, and unix use
// Redis; memory keeps the lists in process.
func Open(rawURL string, opts Options) (Backend, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: no queue url configured", ErrUnavailable)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse queue url: %w", err)
	}
	switch parsed.Scheme {
	case "memory":
		return NewMemory(), nil
	case "redis", "rediss", "unix":
		return NewRedis(rawURL, opts)
	default:
		return nil, fmt.Errorf("unsupported queue url scheme %q", parsed.Scheme)
	}
}

// Key returns the list name for t.
func Key(prefix string, t tier.Tier) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + string(t)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
