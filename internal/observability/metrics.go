package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Counters are process-local; they exist so that no failure in the core is
// swallowed without an observable record. They are scraped via Snapshot.
var (
	countersMu sync.RWMutex
	counters   = map[string]*atomic.Int64{}
)

func inc(name string) {
	countersMu.RLock()
	c, ok := counters[name]
	countersMu.RUnlock()
	if !ok {
		countersMu.Lock()
		if c, ok = counters[name]; !ok {
			c = &atomic.Int64{}
			counters[name] = c
		}
		countersMu.Unlock()
	}
	c.Add(1)
}

// Snapshot returns the current counter values. Used by tests and the health
// surface.
func Snapshot() map[string]int64 {
	countersMu.RLock()
	defer countersMu.RUnlock()
	out := make(map[string]int64, len(counters))
	for name, c := range counters {
		out[name] = c.Load()
	}
	return out
}

// ResetCounters clears all counters. Test helper.
func ResetCounters() {
	countersMu.Lock()
	defer countersMu.Unlock()
	counters = map[string]*atomic.Int64{}
}

func RecordRepositoryOperation(_ context.Context, entity, op, outcome string) {
	inc(fmt.Sprintf("repo.%s.%s.%s", entity, op, outcome))
}

func RecordRateLimitDecision(_ context.Context, scope string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	inc(fmt.Sprintf("rate_limit.%s.%s", scope, outcome))
}

func RecordCacheOutcome(_ context.Context, cache, outcome string) {
	inc(fmt.Sprintf("cache.%s.%s", cache, outcome))
}

func RecordIdempotencyOutcome(_ context.Context, outcome string) {
	inc(fmt.Sprintf("idempotency.%s", outcome))
}

func RecordWebhookDelivery(_ context.Context, outcome string) {
	inc(fmt.Sprintf("webhook.delivery.%s", outcome))
}
