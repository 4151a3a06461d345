package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy is an exponential backoff schedule. Attempt n waits BaseDelay*2^n,
// capped at MaxDelay.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the retry
// budget is spent.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.MaxRetries {
			break
		}
		if err := p.backoff(ctx, attempt); err != nil {
			return lastErr
		}
	}
	if p.MaxRetries > 0 && retryable(lastErr) {
		return fmt.Errorf("after %d retries: %w", p.MaxRetries, lastErr)
	}
	return lastErr
}

// IsTransient matches the failures a local sqlite store produces under
// contention or a flaky filesystem.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "database table is locked", "busy", "disk i/o error", "unable to open database", "timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (p Policy) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
