package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter paces requests across all VUs with a leaky bucket.
//
// The bucket keeps a virtual "drip" time that advances at a fixed rate.
// Each call to Next returns when the next request may start; if callers are
// behind schedule the request may start immediately. Bursting is capped at
// one request so rate changes never release a backlog.
//
// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	rate        float64 // requests per second
	lastDrip    time.Time
	accumulated float64

	total    atomic.Int64
	waitTime atomic.Int64
}

// NewRateLimiter returns a limiter admitting rate requests per second.
// A non-positive rate is treated as 1.
func NewRateLimiter(rate float64) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	return &RateLimiter{rate: rate, lastDrip: time.Now()}
}

// Next reserves a slot and returns when it starts. The returned time may be
// in the past.
func (rl *RateLimiter) Next() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastDrip).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	rl.accumulated += elapsed * rl.rate
	if rl.accumulated > 1 {
		rl.accumulated = 1
	}
	rl.total.Add(1)

	if rl.accumulated >= 1 {
		rl.accumulated--
		rl.lastDrip = now
		return now
	}

	wait := time.Duration((1 - rl.accumulated) / rl.rate * float64(time.Second))
	next := now.Add(wait)
	rl.accumulated = 0
	// Advancing lastDrip to next (not now) stops the sleeper from being
	// credited a second slot when it wakes up.
	rl.lastDrip = next
	rl.waitTime.Add(int64(wait))
	return next
}

// Wait blocks until the next slot or until ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	wait := time.Until(rl.Next())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the rate without releasing accumulated slots.
func (rl *RateLimiter) SetRate(rate float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rate <= 0 {
		rate = 1
	}
	rl.rate = rate
	rl.accumulated = 0
	rl.lastDrip = time.Now()
}

// Rate returns the current rate in requests per second.
func (rl *RateLimiter) Rate() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.rate
}

// RateLimiterStats contains statistics about the limiter.
type RateLimiterStats struct {
	Rate          float64       `json:"rate"`
	Total         int64         `json:"total"`
	TotalWaitTime time.Duration `json:"totalWaitTime"`
}

// Stats returns statistics about the limiter.
func (rl *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		Rate:          rl.Rate(),
		Total:         rl.total.Load(),
		TotalWaitTime: time.Duration(rl.waitTime.Load()),
	}
}
