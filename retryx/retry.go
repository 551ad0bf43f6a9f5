package retryx

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultMaxInterval    = 2 * time.Second
	DefaultMaxElapsedTime = 5 * time.Second
	DefaultMaxRetries     = 3
)

// ConstantRetry executes the provided function `fn` with a constant retry interval.
//
// The retry interval defaults to `DefaultInterval` unless overridden by the `WithInterval`
// option. If more advanced control over the retry behavior is required, consider using the
// `backoff` package directly.
func ConstantRetry(fn func() error, opts ...RetryOption) error {
	rOpts := newRetryOptions(opts...)

	duration := DefaultInterval
	if rOpts.initialInterval > 0 {
		duration = rOpts.initialInterval
	}

	return retry(fn, backoff.NewConstantBackOff(duration), rOpts)
}

// ExponentialRetry executes the provided function `fn` with an exponential backoff retry strategy.
//
// The retry interval starts at `DefaultInterval` unless overridden by the `WithInterval` option.
// The maximum interval between retries starts at `DefaultMaxInterval` unless overridden by the `WithMaxInterval` option.
// The maximum elapsed time defaults to `DefaultMaxElapsedTime` unless overridden by the `WithMaxElapsedTime`option.
func ExponentialRetry(fn func() error, opts ...RetryOption) error {
	rOpts := newRetryOptions(opts...)

	bc := backoff.NewExponentialBackOff()
	bc.InitialInterval = DefaultInterval
	bc.MaxInterval = DefaultMaxInterval
	bc.MaxElapsedTime = DefaultMaxElapsedTime
	if rOpts.initialInterval > 0 {
		bc.InitialInterval = rOpts.initialInterval
	}
	if rOpts.maxInterval > 0 {
		bc.MaxInterval = rOpts.maxInterval
	}
	if rOpts.maxElapsedTime > 0 {
		bc.MaxElapsedTime = rOpts.maxElapsedTime
	}

	return retry(fn, bc, rOpts)
}

// ImmediateRetry executes `fn` again as soon as it fails, up to the retry count.
// It is meant for optimistic concurrency loops where the next attempt re-reads fresh state.
func ImmediateRetry(fn func() error, opts ...RetryOption) error {
	return retry(fn, &backoff.ZeroBackOff{}, newRetryOptions(opts...))
}

func retry(fn func() error, bo backoff.BackOff, rOpts *retryOptions) error {
	maxRetryCount := DefaultMaxRetries
	if rOpts.retryCount > 0 {
		maxRetryCount = rOpts.retryCount
	}

	if rOpts.ctx != nil {
		bo = backoff.WithContext(bo, rOpts.ctx)
	}

	retries := 0
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		retries++
		if retries >= maxRetryCount {
			var permanent *backoff.PermanentError
			if errors.As(err, &permanent) {
				return err
			}
			return backoff.Permanent(err)
		}

		return err
	}, bo)
}
