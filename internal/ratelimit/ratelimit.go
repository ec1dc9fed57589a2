// Package ratelimit enforces the minimum gap between calls to the LLM
// provider. Classification is sequential by policy, not correctness: the
// throttle keeps the pipeline inside external provider quotas and lives
// here so the sequencing policy can change without touching classifier
// logic.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces out calls with a fixed minimum interval and no bursting.
type Throttle struct {
	limiter *rate.Limiter
}

// New creates a throttle that allows one call per minInterval. A
// non-positive interval disables throttling.
func New(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next call is permitted or the context is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
