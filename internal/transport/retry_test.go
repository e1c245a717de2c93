package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := withRetry(3, IsTransient, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryBoundedAttempts(t *testing.T) {
	calls := 0
	err := withRetry(3, IsTransient, func() error {
		calls++
		return ErrBoardDisconnected
	})
	require.ErrorIs(t, err, ErrBoardDisconnected)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	rejected := errors.New("rejected")
	err := withRetry(3, IsTransient, func() error {
		calls++
		return rejected
	})
	require.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrBoardDisconnected))
	assert.False(t, IsTransient(ErrBoardNotConnected))
	assert.False(t, IsTransient(&NackError{Message: "bad value"}))
	assert.False(t, IsTransient(errors.New("malformed response")))
}
