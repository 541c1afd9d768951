package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls to an upstream API evenly, letting up to burst
// calls through at once after an idle period. Callers reserve slots in
// arrival order.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	next     time.Time // start of the next free slot
}

// NewRateLimiter allows perMinute calls per minute with the given burst.
// Non-positive values fall back to 60 per minute and a burst of 1.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    burst,
	}
}

// Interval returns the spacing between slots.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Wait reserves the next slot and blocks until it starts or ctx is done. A
// slot reserved by a cancelled wait is not handed back.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	now := time.Now()
	if earliest := now.Add(-time.Duration(rl.burst-1) * rl.interval); rl.next.Before(earliest) {
		rl.next = earliest
	}
	slot := rl.next
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
