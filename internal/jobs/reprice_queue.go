package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RepriceQueue decouples reprice requests from the HTTP cycle. The Redis list
// survives API process restarts; delivery is at-least-once.
type RepriceQueue interface {
	Enqueue(ctx context.Context, orderID uint) error
	// Dequeue blocks up to timeout. ok=false means the queue stayed empty.
	Dequeue(ctx context.Context, timeout time.Duration) (uint, bool, error)
}

type RedisRepriceQueue struct {
	client redis.UniversalClient
	key    string
}

func NewRedisRepriceQueue(client redis.UniversalClient, key string) *RedisRepriceQueue {
	if key == "" {
		key = "jobs:reprice"
	}
	return &RedisRepriceQueue{client: client, key: key}
}

func (q *RedisRepriceQueue) Enqueue(ctx context.Context, orderID uint) error {
	if q.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return q.client.LPush(ctx, q.key, strconv.FormatUint(uint64(orderID), 10)).Err()
}

func (q *RedisRepriceQueue) Dequeue(ctx context.Context, timeout time.Duration) (uint, bool, error) {
	if q.client == nil {
		return 0, false, fmt.Errorf("redis client is nil")
	}
	values, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(values) != 2 {
		return 0, false, fmt.Errorf("unexpected brpop reply length %d", len(values))
	}
	id, err := strconv.ParseUint(values[1], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed reprice job payload %q: %w", values[1], err)
	}
	return uint(id), true, nil
}
