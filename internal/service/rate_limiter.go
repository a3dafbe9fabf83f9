package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/tasklane/pkg/database"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "tasklane:ratelimit:"

// RateLimitResult is the decision for a single request
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a keyed request fits in its window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimiter is a sliding-window log limiter backed by a Redis sorted set
type RateLimiter struct {
	redis *database.Redis
	now   func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis, opts ...Option) *RateLimiter {
	o := buildOptions(opts)
	return &RateLimiter{redis: redis, now: o.now}
}

// Allow records the request if it fits in the window. Rejected requests are
// not recorded, so a client that backs off recovers once the window slides.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	now := r.now()
	redisKey := rateLimitKeyPrefix + key
	windowStart := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", windowStart)
		count = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		return nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	used := int(count.Val())
	if used >= limit {
		retryAfter := window
		if entries := oldest.Val(); len(entries) > 0 {
			oldestAt := time.Unix(0, int64(entries[0].Score))
			retryAfter = oldestAt.Add(window).Sub(now)
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	_, err = r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: strconv.FormatInt(now.UnixNano(), 10) + ":" + strconv.Itoa(used),
		})
		pipe.Expire(ctx, redisKey, window+time.Minute)
		return nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to record request: %w", err)
	}

	return RateLimitResult{Allowed: true, Remaining: limit - used - 1}, nil
}
