// Package retry re-invokes fallible operations with linearly growing,
// jittered delays. It knows nothing about what the operation does.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultJitter      = 250 * time.Millisecond
)

// ExhaustedError is returned once every attempt has failed. It names the
// operation and wraps the last underlying error.
type ExhaustedError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

// Unwrap exposes the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Policy controls attempt count and backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
	// RetryIf decides whether an error is worth another attempt. Nil retries
	// everything except context cancellation.
	RetryIf func(error) bool
	// OnRetry is invoked before each wait with the failed attempt number.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// Option customizes a Policy.
type Option func(*Policy)

// WithMaxAttempts overrides the attempt budget (defaults to 3).
func WithMaxAttempts(attempts int) Option {
	return func(p *Policy) {
		p.MaxAttempts = attempts
	}
}

// WithBackoff overrides the base delay and jitter ceiling.
func WithBackoff(base, jitter time.Duration) Option {
	return func(p *Policy) {
		p.BaseDelay = base
		p.Jitter = jitter
	}
}

// WithRetryIf restricts which errors are retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) {
		p.RetryIf = fn
	}
}

// WithOnRetry registers a hook called before every backoff wait.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) {
		p.OnRetry = fn
	}
}

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = sleep
	}
}

// WithJitterSource overrides the random jitter generator (useful for tests).
func WithJitterSource(fn func(time.Duration) time.Duration) Option {
	return func(p *Policy) {
		p.jitter = fn
	}
}

func newPolicy(opts []Option) Policy {
	p := Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Jitter:      DefaultJitter,
		sleep:       Sleep,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.sleep == nil {
		p.sleep = Sleep
	}
	if p.jitter == nil {
		p.jitter = randomJitter
	}
	return p
}

// Delay returns the wait before the attempt following the given one:
// base*attempt plus a jitter in [0, Jitter).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 && p.jitter != nil {
		delay += p.jitter(p.Jitter)
	}
	if delay < 0 {
		return 0
	}
	return delay
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

// Do runs op until it succeeds, returns a non-retryable error, ctx ends, or
// the attempt budget is exhausted.
func Do(ctx context.Context, label string, op func(context.Context) error, opts ...Option) error {
	_, err := Value(ctx, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, label string, op func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	policy := newPolicy(opts)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", label, err)
		}
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !policy.retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if err := policy.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", label, err)
		}
	}

	return zero, &ExhaustedError{Label: label, Attempts: policy.MaxAttempts, Err: lastErr}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
