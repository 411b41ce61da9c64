package auth

import (
	"sync"
	"time"
)

/*
RateLimiter is a token bucket: capacity tokens refill continuously at
the configured rate, one token per allowed request.
*/
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
}

func NewRateLimiter(requests int64, interval time.Duration) *RateLimiter {
	if requests <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &RateLimiter{
		rate:     float64(requests) / interval.Seconds(),
		capacity: float64(requests),
		tokens:   float64(requests),
		last:     time.Now(),
	}
}

/*
Allow consumes one token when available.
*/
func (limiter *RateLimiter) Allow() bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(limiter.last).Seconds()
	limiter.last = now

	limiter.tokens += elapsed * limiter.rate

	if limiter.tokens > limiter.capacity {
		limiter.tokens = limiter.capacity
	}

	if limiter.tokens < 1.0 {
		return false
	}

	limiter.tokens--

	return true
}

/*
WaitTime reports how long until the next token is available.
*/
func (limiter *RateLimiter) WaitTime() time.Duration {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	if limiter.tokens >= 1.0 {
		return 0
	}

	needed := (1.0 - limiter.tokens) / limiter.rate

	return time.Duration(needed * float64(time.Second))
}

/*
Reset refills the bucket to capacity.
*/
func (limiter *RateLimiter) Reset() {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	limiter.tokens = limiter.capacity
	limiter.last = time.Now()
}
