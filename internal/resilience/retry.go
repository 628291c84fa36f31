package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy bounds how often and how patiently an operation is retried. The
// delay doubles after every failed attempt up to MaxDelay.
type Policy struct {
	Attempts  int           // total tries including the first; <1 means 1
	BaseDelay time.Duration // wait before the second try
	MaxDelay  time.Duration
	Jitter    float64 // fraction of each delay randomized in either direction

	// Retryable decides whether an error is worth another try. IsTransient
	// is used when nil.
	Retryable func(error) bool

	// OnRetry runs before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

// NavigationPolicy returns the policy for page navigations with the given
// number of extra attempts after the first.
func NavigationPolicy(retries int) Policy {
	if retries < 0 {
		retries = 0
	}
	return Policy{
		Attempts:  retries + 1,
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
		Jitter:    0.25,
	}
}

// Do calls fn until it succeeds or the policy gives up. Context
// cancellation ends the loop at once. The most recent error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || ctx.Err() != nil || !retryable(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if wait := p.delay(attempt); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
}

// delay is the wait after the given failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return max(d, 0)
}

// LogRetries returns an OnRetry hook that logs each failed attempt.
func LogRetries(op, target string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying",
			zap.String("op", op),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
