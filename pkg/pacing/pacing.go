// Package pacing inserts deliberate pauses between page fetches so a long
// export does not overload the upstream service.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Pacer computes and applies the pause between consecutive requests:
// a fixed base delay plus a bounded random jitter.
type Pacer struct {
	// Base is the fixed delay component.
	Base time.Duration

	// JitterMin and JitterMax bound the random component. Jitter is only
	// applied when JitterMax is positive.
	JitterMin time.Duration
	JitterMax time.Duration
}

// Pause sleeps for the configured base delay plus jitter.
// Returns early with the context error when ctx is cancelled.
func (p Pacer) Pause(ctx context.Context) error {
	return p.sleep(ctx, p.delay(0))
}

// PauseAtLeast sleeps like Pause but with the base delay raised to floor.
// Used for error and fallback pauses, where a minimum cool-down applies
// even when the configured base pause is zero.
func (p Pacer) PauseAtLeast(ctx context.Context, floor time.Duration) error {
	return p.sleep(ctx, p.delay(floor))
}

func (p Pacer) delay(floor time.Duration) time.Duration {
	base := max(p.Base, 0)
	if floor > base {
		base = floor
	}

	pause := base
	if p.JitterMax > 0 {
		span := p.JitterMax - p.JitterMin
		if span < 0 {
			span = 0
		}
		pause += p.JitterMin + time.Duration(rand.Float64()*float64(span))
	}
	return pause
}

func (p Pacer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
