// Package retry wraps a fallible operation in a bounded, fixed-delay retry loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxRetries = 5
	DefaultDelay      = 3000 * time.Millisecond
)

// ErrRetriesExhausted is returned once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Policy bounds the number of attempts and the pause between them.
// MaxRetries counts total invocations, so MaxRetries=3 calls the operation
// at most three times.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	// OnRetry, when set, observes each failed attempt before the delay.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns 5 attempts, 3s apart.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Do invokes op until it succeeds or the policy runs out of attempts.
// Every failure of op is retried; there is no distinction between an error
// raised while starting the work and one raised while finishing it.
// The returned error wraps both ErrRetriesExhausted and the last failure.
// Cancelling ctx aborts the wait between attempts.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, fmt.Errorf("retry aborted after attempt %d: %w", attempt, errors.Join(err, lastErr))
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.MaxRetries, lastErr)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
