package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reelpull/internal/jobs"
	"reelpull/internal/tier"
)

// Redis keeps one list per tier on a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects lazily; call Ping to verify reachability.
func NewRedis(rawURL string, opts Options) (*Redis, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ConnectTimeout > 0 {
		redisOpts.DialTimeout = opts.ConnectTimeout
	}
	// Workers block in BRPOP; the read deadline must outlast the block.
	redisOpts.ReadTimeout = -1
	redisOpts.MaxRetries = 0
	return &Redis{client: redis.NewClient(redisOpts), prefix: opts.Prefix}, nil
}

// Ping implements Backend.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Enqueue implements Backend.
func (r *Redis) Enqueue(ctx context.Context, t tier.Tier, req jobs.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := r.client.LPush(ctx, Key(r.prefix, t), payload).Err(); err != nil {
		return unavailable("lpush", err)
	}
	return nil
}

// Requeue implements Backend. BRPOP takes from the right, so RPUSH puts the
// request back at the head.
func (r *Redis) Requeue(ctx context.Context, t tier.Tier, req jobs.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := r.client.RPush(ctx, Key(r.prefix, t), payload).Err(); err != nil {
		return unavailable("rpush", err)
	}
	return nil
}

// Dequeue implements Backend.
func (r *Redis) Dequeue(ctx context.Context, t tier.Tier, block time.Duration) (*jobs.Request, error) {
	values, err := r.client.BRPop(ctx, block, Key(r.prefix, t)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable("brpop", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("%w: unexpected brpop reply of %d values", ErrMalformed, len(values))
	}
	return decodeRequest([]byte(values[1]))
}

// Len implements Backend.
func (r *Redis) Len(ctx context.Context, t tier.Tier) (int64, error) {
	n, err := r.client.LLen(ctx, Key(r.prefix, t)).Result()
	if err != nil {
		return 0, unavailable("llen", err)
	}
	return n, nil
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.client.Close()
}

func decodeRequest(payload []byte) (*jobs.Request, error) {
	var req jobs.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if req.JobID == "" || req.SourceURL == "" {
		return nil, fmt.Errorf("%w: missing job id or source url", ErrMalformed)
	}
	return &req, nil
}
