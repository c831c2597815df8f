package argocd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrUnauthorized is returned when the API server rejects the session token.
// It is never retried.
var ErrUnauthorized = errors.New("argocd session is not authorized, run `argocd login` again")

// DefaultRetries matches the number of extra attempts made for mutating and per-app calls.
const DefaultRetries = 3

type RetryPolicy struct {
	// Retries is the number of attempts after the first one.
	Retries uint
	// NewBackOff builds the wait strategy between attempts.
	NewBackOff func() backoff.BackOff
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries: DefaultRetries,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// NoRetry performs exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{Retries: 0}
}

// IsUnauthorized reports whether err is an authentication failure from the API server.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	return status.Code(err) == codes.Unauthenticated
}

func withRetry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.NewBackOff != nil {
		b = p.NewBackOff()
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if IsUnauthorized(err) {
			var zero T
			return zero, backoff.Permanent(fmt.Errorf("%w: %v", ErrUnauthorized, err))
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.Retries+1))
}

func doWithRetry(ctx context.Context, p RetryPolicy, op func() error) error {
	_, err := withRetry(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Retry runs op under p. Authorization failures stop immediately and wrap ErrUnauthorized.
func Retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	return withRetry(ctx, p, op)
}
