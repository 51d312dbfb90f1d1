package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const keyedLimiterResetInterval = time.Hour

// keyedLimiter hands out one token bucket per key. Buckets are discarded hourly to bound memory.
type keyedLimiter struct {
	mutex       sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	clock       func() time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		limit:       limit,
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		clock:       time.Now,
	}
}

func (limiter *keyedLimiter) Allow(key string) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.clock()
	if now.Sub(limiter.lastCleanup) > keyedLimiterResetInterval {
		limiter.limiters = make(map[string]*rate.Limiter)
		limiter.lastCleanup = now
	}
	bucket, exists := limiter.limiters[key]
	if !exists {
		bucket = rate.NewLimiter(limiter.limit, limiter.burst)
		limiter.limiters[key] = bucket
	}
	return bucket.AllowN(now, 1)
}
