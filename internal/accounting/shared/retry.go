package shared

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a transaction is replayed after a serialization conflict.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is invoked before each replay.
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetryPolicy is used when a service is built without an explicit policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 5, InitialInterval: 20 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// RetryOnConflict runs fn until it succeeds, returns a non-conflict error, or the policy is exhausted.
// Only ErrConcurrencyConflict is retried.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	eb := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		eb.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		eb.MaxInterval = policy.MaxInterval
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(policy.MaxTries),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(policy.OnRetry))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrConcurrencyConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
