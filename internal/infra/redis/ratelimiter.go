package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/reminder-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "reminder:relay:ratelimit:"
	maxWaitStep        = 250 * time.Millisecond
)

// reserveScript keeps one sorted-set member per delivery scored by its time in
// milliseconds. It admits the caller when fewer than ARGV[3] members are newer
// than now-window and otherwise returns how long until the oldest one expires.
var reserveScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  redis.call("PEXPIRE", KEYS[1], window)
  return 0
end
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then
  wait = 1
end
return wait
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a sliding-window limiter shared by every relay instance.
// It applies the same trailing-window counting the reminder gate uses, with
// the window state kept in redis.
type RedisRateLimiter struct {
	client   *goredis.Client
	budget   ratelimit.Budget
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	memberID func() string
}

func NewRedisRateLimiter(client *goredis.Client, budget ratelimit.Budget) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, budget, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	budget ratelimit.Budget,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:   client,
		budget:   budget.Normalize(),
		now:      nowFn,
		sleep:    sleepFn,
		memberID: uuid.NewString,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	wait, err := r.reserve(ctx, scope)
	if err != nil {
		return false, err
	}
	return wait == 0, nil
}

// Wait blocks until the scope has room in its window, sleeping for the time
// redis reports until the oldest delivery leaves it.
func (r *RedisRateLimiter) Wait(ctx context.Context, scope string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		wait, err := r.reserve(ctx, scope)
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}
		if wait > maxWaitStep {
			wait = maxWaitStep
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) reserve(ctx context.Context, scope string) (time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedScope := strings.ToLower(strings.TrimSpace(scope))
	if normalizedScope == "" {
		return 0, fmt.Errorf("scope is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	nowMs := r.now().UnixMilli()
	waitMs, err := reserveScript.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + normalizedScope},
		nowMs, r.budget.Window.Milliseconds(), r.budget.Limit, fmt.Sprintf("%d-%s", nowMs, r.memberID()),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return time.Duration(waitMs) * time.Millisecond, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
