// Package ratelimit provides token bucket limiters for alerts, sign-in
// attempts and form submissions.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/member-portal/pkg/interfaces"
)

// TokenBucketRateLimiter implements token bucket rate limiting
type TokenBucketRateLimiter struct {
	capacity   int
	refillRate time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

var _ interfaces.RateLimiter = (*TokenBucketRateLimiter)(nil)

// NewTokenBucketRateLimiter creates a limiter holding capacity tokens and
// regaining one token every refillRate. Negative capacity is treated as zero.
func NewTokenBucketRateLimiter(capacity int, refillRate time.Duration) *TokenBucketRateLimiter {
	if capacity < 0 {
		capacity = 0
	}
	return &TokenBucketRateLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		limiter:    newLimiter(capacity, refillRate),
	}
}

func newLimiter(capacity int, refillRate time.Duration) *rate.Limiter {
	if capacity == 0 {
		return rate.NewLimiter(0, 0)
	}
	return rate.NewLimiter(rate.Every(refillRate), capacity)
}

// Allow checks if a request is allowed under the rate limit
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return tb.limiter.Allow()
}

// Reset resets the rate limiter to full capacity
func (tb *TokenBucketRateLimiter) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.limiter = newLimiter(tb.capacity, tb.refillRate)
}

// Keyed hands out an independent token bucket per key, such as a client IP
// or an account email.
type Keyed struct {
	capacity   int
	refillRate time.Duration
	maxKeys    int

	mu       sync.Mutex
	limiters map[string]*TokenBucketRateLimiter
}

// NewKeyed creates a keyed limiter. When more than maxKeys buckets exist the
// map is cleared; a non-positive maxKeys means 10000.
func NewKeyed(capacity int, refillRate time.Duration, maxKeys int) *Keyed {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &Keyed{
		capacity:   capacity,
		refillRate: refillRate,
		maxKeys:    maxKeys,
		limiters:   make(map[string]*TokenBucketRateLimiter),
	}
}

// Allow consumes a token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	return k.bucket(key).Allow()
}

// Reset refills key's bucket, e.g. after a successful sign-in.
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.limiters, key)
}

func (k *Keyed) bucket(key string) *TokenBucketRateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if l, ok := k.limiters[key]; ok {
		return l
	}
	if len(k.limiters) >= k.maxKeys {
		k.limiters = make(map[string]*TokenBucketRateLimiter)
	}
	l := NewTokenBucketRateLimiter(k.capacity, k.refillRate)
	k.limiters[key] = l
	return l
}
