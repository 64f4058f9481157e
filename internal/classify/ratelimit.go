package classify

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window request budget, local to one running
// instance. The window resets by wall-clock comparison, not by timer; under
// horizontal scale-out the budget is per live instance, which is a documented
// limitation of the design.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	count   int
	resetAt time.Time

	now func() time.Time // test hook
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow consumes one unit of budget, resetting the window first if it has
// elapsed. Returns false when the budget for the current window is exhausted.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.resetAt) {
		l.count = 0
		l.resetAt = now.Add(l.window)
	}

	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}
