package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// PerMinute is a Limiter allowing a fixed number of requests per minute
// with a burst of one
type PerMinute struct {
	limiter *rate.Limiter
}

// NewPerMinute returns a limiter for n requests per minute. A non-positive n
// disables limiting.
func NewPerMinute(n int) Limiter {
	if n <= 0 {
		return Unlimited{}
	}
	return &PerMinute{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1),
	}
}

func (p *PerMinute) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
