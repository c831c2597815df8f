package argocd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastRetry(n uint) RetryPolicy {
	return RetryPolicy{Retries: n}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := doWithRetry(context.Background(), fastRetry(2), func() error {
		calls++
		return errors.New("unavailable")
	})
	assert.EqualError(t, err, "unavailable")
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnUnauthorized(t *testing.T) {
	calls := 0
	err := doWithRetry(context.Background(), fastRetry(3), func() error {
		calls++
		return status.Error(codes.Unauthenticated, "invalid session")
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)
}

func TestNoRetry(t *testing.T) {
	calls := 0
	_ = doWithRetry(context.Background(), NoRetry(), func() error {
		calls++
		return errors.New("unavailable")
	})
	assert.Equal(t, 1, calls)
}

func TestIsUnauthorized(t *testing.T) {
	assert.False(t, IsUnauthorized(nil))
	assert.False(t, IsUnauthorized(errors.New("x")))
	assert.False(t, IsUnauthorized(status.Error(codes.NotFound, "x")))
	assert.True(t, IsUnauthorized(status.Error(codes.Unauthenticated, "x")))
	assert.True(t, IsUnauthorized(errors.Join(errors.New("sync"), ErrUnauthorized)))
}
