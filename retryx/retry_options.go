package retryx

import (
	"context"
	"time"
)

type retryOptions struct {
	retryCount      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	ctx             context.Context
}

type RetryOption func(*retryOptions)

func newRetryOptions(opts ...RetryOption) *retryOptions {
	rOpts := &retryOptions{}
	for _, opt := range opts {
		opt(rOpts)
	}
	return rOpts
}

// WithRetryCount sets the total number of attempts, the first one included.
func WithRetryCount(count int) RetryOption {
	return func(ro *retryOptions) {
		ro.retryCount = count
	}
}

func WithInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.initialInterval = interval
	}
}

func WithMaxInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxInterval = interval
	}
}

func WithMaxElapsedTime(d time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxElapsedTime = d
	}
}

// WithContext stops retrying once ctx is done.
func WithContext(ctx context.Context) RetryOption {
	return func(ro *retryOptions) {
		ro.ctx = ctx
	}
}
