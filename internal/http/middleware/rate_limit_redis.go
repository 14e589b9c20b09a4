package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window counting: one counter per (key, window-start) bucket. The
// INCR+PEXPIRE pair runs as a single script so two concurrent requests can
// never both observe count < limit before either writes.
var redisFixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call("INCR", key)
if count == 1 then
  redis.call("PEXPIRE", key, window_ms)
end

local allowed = 0
if count <= limit then
  allowed = 1
end

local remaining = limit - count
if remaining < 0 then
  remaining = 0
end

return {allowed, remaining, redis.call("PTTL", key)}
`)

type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if l.client == nil {
		return Decision{}, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		key = "unknown"
	}
	if window <= 0 {
		window = time.Second
	}
	now := time.Now()
	windowStart := now.Truncate(window)
	windowEnd := windowStart.Add(window)
	bucketKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, windowStart.Unix())

	raw, err := redisFixedWindowScript.Run(
		ctx,
		l.client,
		[]string{bucketKey},
		limit,
		int(window/time.Millisecond),
	).Result()
	if err != nil {
		return Decision{}, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected redis script response type")
	}
	allowedInt, err := parseRedisInt64(values[0])
	if err != nil {
		return Decision{}, err
	}
	remaining, err := parseRedisInt64(values[1])
	if err != nil {
		return Decision{}, err
	}

	retryAfter := windowEnd.Sub(now)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Decision{
		Allowed:    allowedInt == 1,
		Remaining:  int(max(remaining, 0)),
		RetryAfter: retryAfter,
		ResetAt:    windowEnd,
	}, nil
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis response overflows int64")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		return 0, fmt.Errorf("unexpected string redis response: %s", n)
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
