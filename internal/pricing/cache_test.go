package pricing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisQuoteCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisQuoteCache(client, "price")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisQuoteCacheRoundTrip(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	in := QuoteInput{BasePrice: 100, DistanceKM: 50, VehicleType: "truck", SeasonBonus: 10, Operable: true}
	fp := Fingerprint(in)

	if _, hit, err := cache.Get(ctx, fp); err != nil || hit {
		t.Fatalf("expected cold miss, hit=%v err=%v", hit, err)
	}

	want := Calculate(in)
	if err := cache.Set(ctx, fp, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, hit, err := cache.Get(ctx, fp)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if got.FinalPrice != want.FinalPrice {
		t.Errorf("cached final price = %v, want %v", got.FinalPrice, want.FinalPrice)
	}
	if got.Breakdown["distance_cost"] != want.Breakdown["distance_cost"] {
		t.Errorf("cached breakdown mismatch: %v", got.Breakdown)
	}
}

func TestRedisQuoteCacheTTLExpiry(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	in := QuoteInput{BasePrice: 10, DistanceKM: 1, VehicleType: "sedan", Operable: true}
	fp := Fingerprint(in)
	if err := cache.Set(ctx, fp, Calculate(in), 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	mr.FastForward(time.Minute)

	if _, hit, err := cache.Get(ctx, fp); err != nil || hit {
		t.Fatalf("expected expiry miss, hit=%v err=%v", hit, err)
	}
}

func TestCachedCalculatorRecomputesOnBackendFailure(t *testing.T) {
	mr, cache := newTestCache(t)
	calc := NewCachedCalculator(cache, time.Minute, discardLogger())
	mr.Close()

	in := QuoteInput{BasePrice: 100, DistanceKM: 50, VehicleType: "truck", SeasonBonus: 10, Operable: true}
	quote := calc.Calc(context.Background(), in)
	if quote.FinalPrice != 230 {
		t.Fatalf("final price = %v, want 230 despite cache outage", quote.FinalPrice)
	}
}

func TestCachedCalculatorServesCachedQuote(t *testing.T) {
	_, cache := newTestCache(t)
	calc := NewCachedCalculator(cache, time.Minute, discardLogger())
	ctx := context.Background()

	in := QuoteInput{BasePrice: 100, DistanceKM: 20, VehicleType: "suv", Operable: false}
	first := calc.Calc(ctx, in)
	second := calc.Calc(ctx, in)
	if first.FinalPrice != second.FinalPrice {
		t.Fatalf("cached quote diverged: %v vs %v", first.FinalPrice, second.FinalPrice)
	}
}
