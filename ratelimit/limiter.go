// Package ratelimit serializes outbound calls to the quoting service under a
// minimum-interval plus rolling-window policy.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles callers two ways: a minimum spacing between any two
// calls, and a maximum call count per rolling time window. Acquire blocks
// the caller until both constraints are satisfied. The limiter is shared
// process-wide and safe for concurrent use.
type Limiter struct {
	spacing *rate.Limiter

	mu           sync.Mutex
	window       time.Duration
	maxPerWindow int
	windowStart  time.Time
	count        int
}

// New creates a limiter enforcing minInterval between calls and at most
// maxPerWindow calls per window.
func New(minInterval, window time.Duration, maxPerWindow int) *Limiter {
	return &Limiter{
		spacing:      rate.NewLimiter(rate.Every(minInterval), 1),
		window:       window,
		maxPerWindow: maxPerWindow,
	}
}

// Acquire blocks until the caller may issue one call, or until ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.waitWindow(ctx); err != nil {
		return err
	}
	return l.spacing.Wait(ctx)
}

func (l *Limiter) waitWindow(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.maxPerWindow {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
