// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
)

const bucketIdleTTL = 10 * time.Minute

type rateLimitDecision struct {
	Allowed           bool
	LimitPerMinute    int
	Remaining         int
	RetryAfterSeconds int
}

type tokenBucket struct {
	capacity        float64
	tokens          float64
	refillPerSecond float64
	lastRefill      time.Time
}

// tenantRateLimiter keeps one token bucket per brand, so every key issued to a
// brand draws from the same budget. Platform-wide keys get their own bucket.
type tenantRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newTenantRateLimiter() *tenantRateLimiter {
	return &tenantRateLimiter{
		buckets: make(map[string]*tokenBucket, 32),
	}
}

func limiterKey(key auth.APIKey) string {
	if key.BrandID != "" {
		return "brand:" + key.BrandID
	}
	return "key:" + key.ID.String()
}

func (l *tenantRateLimiter) Allow(bucketKey string, limitPerMinute int, now time.Time) rateLimitDecision {
	if limitPerMinute <= 0 {
		limitPerMinute = 1
	}
	capacity := float64(limitPerMinute)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	bucket, ok := l.buckets[bucketKey]
	if !ok {
		bucket = &tokenBucket{
			capacity:        capacity,
			tokens:          capacity,
			refillPerSecond: capacity / 60.0,
			lastRefill:      now,
		}
		l.buckets[bucketKey] = bucket
	} else if bucket.capacity != capacity {
		// Keys of one brand may carry different limits. The bucket keeps its
		// balance; only the ceiling and refill rate follow the caller's key.
		bucket.capacity = capacity
		bucket.refillPerSecond = capacity / 60.0
		bucket.tokens = math.Min(bucket.tokens, capacity)
	}

	if elapsed := now.Sub(bucket.lastRefill).Seconds(); elapsed > 0 {
		bucket.tokens = math.Min(bucket.capacity, bucket.tokens+elapsed*bucket.refillPerSecond)
		bucket.lastRefill = now
	}

	decision := rateLimitDecision{
		LimitPerMinute: limitPerMinute,
		Remaining:      int(math.Floor(bucket.tokens)),
	}

	if bucket.tokens >= 1 {
		bucket.tokens--
		decision.Allowed = true
		decision.Remaining = int(math.Floor(bucket.tokens))
		return decision
	}

	wait := int(math.Ceil((1 - bucket.tokens) / bucket.refillPerSecond))
	decision.RetryAfterSeconds = max(wait, 1)
	return decision
}

// sweep drops buckets idle long enough to have refilled completely.
func (l *tenantRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketIdleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastRefill) >= bucketIdleTTL {
			delete(l.buckets, k)
		}
	}
}
