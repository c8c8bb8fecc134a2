package supervisor

import (
	"context"
	"time"
)

const (
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// ExponentialBackoff doubles the delay for every consecutive failure, starting at
// Base and never exceeding Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// NextDelay returns the wait after the given number of consecutive failures.
// failures below 1 are treated as 1.
func (b ExponentialBackoff) NextDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	base := b.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	max := b.Max
	if max <= 0 {
		max = DefaultMaxDelay
	}

	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
