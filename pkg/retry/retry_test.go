package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PlainErrorNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorStopsRetries(t *testing.T) {
	sentinel := errors.New("bad credentials")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(sentinel)
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithRetryIf(func(error) bool { return true }))

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("still down")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(sentinel)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("transient"))
	}, WithMaxAttempts(5), WithInitialDelay(time.Minute))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStartupRetrier_RetriesPlainErrors(t *testing.T) {
	// Connection pings return plain errors, not wrapped ones; the
	// startup retrier must still retry them.
	r := StartupRetrier()
	r.config.InitialDelay = time.Millisecond
	r.config.MaxAttempts = 3

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	value, err := DoWithData(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestCalculateDelay_CappedAtMax(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(10),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, time.Second, r.calculateDelay(2))
	assert.Equal(t, time.Second, r.calculateDelay(5))
}
