// Package ratelimit implements the client-side request budgets and the
// reconnect backoff policy.
//
// Nothing in this package starts goroutines or takes locks, except Locked,
// which exists for hosts that share one Controller between goroutines.
package ratelimit

import (
	"math"
	"time"
)

// Bucket is a token bucket: capacity tokens, refilled continuously at
// capacity per window. Tokens never go negative.
type Bucket struct {
	capacity   float64
	tokens     float64
	rate       float64 // Tokens per second
	lastRefill time.Time
}

// NewBucket creates a full bucket.
func NewBucket(capacity int, window time.Duration, now time.Time) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Bucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity), // Start with full bucket
		rate:       float64(capacity) / window.Seconds(),
		lastRefill: now,
	}
}

// Take consumes one token. If none is available it returns false and how
// long until one will be.
func (b *Bucket) Take(now time.Time) (time.Duration, bool) {
	b.refill(now)

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return 0, true
	}

	wait := (1.0 - b.tokens) / b.rate
	d := time.Duration(math.Ceil(wait * float64(time.Second)))
	if d <= 0 {
		d = time.Nanosecond
	}
	return d, false
}

// Tokens returns the tokens available at now.
func (b *Bucket) Tokens(now time.Time) float64 {
	b.refill(now)
	return b.tokens
}

// Capacity returns the bucket size.
func (b *Bucket) Capacity() int {
	return int(b.capacity)
}

func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity // Cap at max bucket size
	}
	b.lastRefill = now
}
