package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"transport-pricing-service/internal/observability"
)

// Fingerprint hashes the normalized input tuple. Field order is fixed so the
// same inputs always map to the same cache key.
func Fingerprint(in QuoteInput) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%t",
		strconv.FormatFloat(in.BasePrice, 'f', -1, 64),
		strconv.FormatFloat(in.DistanceKM, 'f', -1, 64),
		in.VehicleType,
		strconv.FormatFloat(in.SeasonBonus, 'f', -1, 64),
		in.Operable,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

type QuoteCache interface {
	Get(ctx context.Context, fingerprint string) (Quote, bool, error)
	Set(ctx context.Context, fingerprint string, q Quote, ttl time.Duration) error
}

type RedisQuoteCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisQuoteCache(client redis.UniversalClient, prefix string) *RedisQuoteCache {
	if prefix == "" {
		prefix = "price"
	}
	return &RedisQuoteCache{client: client, prefix: prefix}
}

func (c *RedisQuoteCache) cacheKey(fingerprint string) string {
	return fmt.Sprintf("%s:%s", c.prefix, fingerprint)
}

func (c *RedisQuoteCache) Get(ctx context.Context, fingerprint string) (Quote, bool, error) {
	if c.client == nil {
		return Quote{}, false, nil
	}
	raw, err := c.client.Get(ctx, c.cacheKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, err
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return q, true, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, fingerprint string, q Quote, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return c.client.Set(ctx, c.cacheKey(fingerprint), raw, ttl).Err()
}

// CachedCalculator memoizes Calculate by input fingerprint. Cache failures are
// logged and degrade to a recompute; pricing itself never fails.
type CachedCalculator struct {
	cache  QuoteCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedCalculator(cache QuoteCache, ttl time.Duration, logger *slog.Logger) *CachedCalculator {
	return &CachedCalculator{cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedCalculator) Calc(ctx context.Context, in QuoteInput) Quote {
	fingerprint := Fingerprint(in)
	if c.cache != nil {
		cached, hit, err := c.cache.Get(ctx, fingerprint)
		if err != nil {
			c.logger.Warn("price cache read failed", "error", err)
		} else if hit {
			observability.RecordCacheOutcome(ctx, "price", "hit")
			return cached
		}
	}
	observability.RecordCacheOutcome(ctx, "price", "miss")
	quote := Calculate(in)
	if c.cache != nil {
		if err := c.cache.Set(ctx, fingerprint, quote, c.ttl); err != nil {
			c.logger.Warn("price cache write failed", "error", err)
		}
	}
	return quote
}
