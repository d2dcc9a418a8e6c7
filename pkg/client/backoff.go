package client

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy computes the wait before the next health probe.
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff grows the wait by Factor per attempt up to Max, then
// spreads it by ±Jitter.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // 0.0 to 1.0
}

// DefaultBackoff is used by WaitReady while the daemon starts.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the wait for a 0-based attempt.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	wait := float64(b.Base)
	for i := 0; i < attempt && wait < float64(b.Max); i++ {
		wait *= b.Factor
	}
	wait = min(wait, float64(b.Max))

	if b.Jitter > 0 {
		wait *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(max(wait, 0))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
