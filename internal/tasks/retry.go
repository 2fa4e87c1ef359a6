package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/desertthunder/fiply/internal/shared"
)

const (
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 100 * time.Millisecond
	defaultMaxRetryDelay = 2 * time.Second
)

// BackOffFunc builds a fresh [backoff.BackOff] for one call to [Retry].
type BackOffFunc func() backoff.BackOff

// ConstantBackOff waits d between every attempt.
func ConstantBackOff(d time.Duration) BackOffFunc {
	return func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
}

// ExponentialBackOff doubles initial after every failure, capped at ceiling. No jitter is applied.
func ExponentialBackOff(initial, ceiling time.Duration) BackOffFunc {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = ceiling
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.Reset()
		return b
	}
}

// RetryPolicy bounds how often a failing operation is attempted.
type RetryPolicy struct {
	MaxAttempts int
	BackOff     BackOffFunc      // nil waits 100ms between attempts
	Retryable   func(error) bool // nil retries every error
	Notify      backoff.Notify   // called with the failure and the wait before each retry
}

// DefaultRetryPolicy makes three attempts a fixed 100ms apart and retries only transport and
// malformed-response failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BackOff:     ConstantBackOff(defaultRetryDelay),
		Retryable:   IsRetryableFetchError,
	}
}

// PolicyFromConfig builds a policy from [shared.HarvestConfig].
func PolicyFromConfig(cfg shared.HarvestConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}

	delay := defaultRetryDelay
	if cfg.RetryDelay.Duration > 0 {
		delay = cfg.RetryDelay.Duration
	}

	switch cfg.Backoff {
	case "exponential":
		ceiling := defaultMaxRetryDelay
		if cfg.MaxRetryDelay.Duration > 0 {
			ceiling = cfg.MaxRetryDelay.Duration
		}
		p.BackOff = ExponentialBackOff(delay, max(ceiling, delay))
	default:
		p.BackOff = ConstantBackOff(delay)
	}
	return p
}

// IsRetryableFetchError reports whether err is worth another feed or catalog request.
func IsRetryableFetchError(err error) bool {
	return errors.Is(err, shared.ErrTransport) ||
		errors.Is(err, shared.ErrMalformedResponse) ||
		errors.Is(err, shared.ErrAPIRequest)
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the policy's attempts are
// used up. Exhaustion returns [shared.ErrRetriesExhausted] wrapping the last failure.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempts := max(p.MaxAttempts, 1)
	newBackOff := p.BackOff
	if newBackOff == nil {
		newBackOff = ConstantBackOff(defaultRetryDelay)
	}

	attempt := 0
	permanent := false
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx, attempt)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(p.Notify),
	)
	if err == nil {
		return v, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if permanent || ctx.Err() != nil {
		return zero, err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", shared.ErrRetriesExhausted, attempt, err)
}
