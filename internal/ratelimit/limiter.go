// Package ratelimit throttles outbound LLM requests to a configured
// requests-per-minute budget.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket rate limiter sized in requests per minute.
// Burst equals the full per-minute budget, so a freshly started process
// may issue its whole minute's allowance immediately before throttling
// kicks in.
type Limiter struct {
	limiter *rate.Limiter
	rpm     int
}

// New creates a Limiter allowing up to rpm requests per minute. A
// non-positive rpm disables throttling entirely.
func New(rpm int) *Limiter {
	if rpm <= 0 {
		return &Limiter{rpm: 0}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		rpm:     rpm,
	}
}

// Wait blocks until a token is available or ctx is done. A disabled
// Limiter (rpm <= 0) always returns immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// RPM returns the configured requests-per-minute budget, or 0 if
// throttling is disabled.
func (l *Limiter) RPM() int {
	return l.rpm
}
