// Package retry provides a bounded retry policy with a fixed delay between
// attempts. Playbook execution and attacker-agent recovery share this policy
// instead of open-coding sleep loops.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retried operation: at most MaxAttempts tries with a fixed
// Delay between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy matches the range-wide convention of 3 attempts 5s apart.
var DefaultPolicy = Policy{MaxAttempts: 3, Delay: 5 * time.Second}

// ErrAttemptsExhausted wraps the last failure once the attempt ceiling is hit.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Do runs fn until it succeeds, the policy is exhausted, or the context is
// done. The returned error wraps both ErrAttemptsExhausted and the last
// failure so callers can inspect either.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt < attempts && p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

// DoWithRecover behaves like Do but runs recover before every attempt after
// the first. The attacker-install loop uses this to restore the host from
// its snapshot between tries.
func (p Policy) DoWithRecover(ctx context.Context, fn, recover func(ctx context.Context) error) error {
	first := true
	return p.Do(ctx, func(ctx context.Context) error {
		if !first && recover != nil {
			if err := recover(ctx); err != nil {
				return fmt.Errorf("recover before retry: %w", err)
			}
		}
		first = false
		return fn(ctx)
	})
}
