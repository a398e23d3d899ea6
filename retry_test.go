package mcpwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r := newRetryPolicy(RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	attempts := 0
	res, err := r.execute(context.Background(), func() (any, error) {
		attempts++
		if attempts < 4 {
			return nil, &TransportError{Err: errors.New("flaky")}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 4, attempts)
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	r := newRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	attempts := 0
	last := &TransportError{Err: errors.New("still down")}
	_, err := r.execute(context.Background(), func() (any, error) {
		attempts++
		return nil, last
	})

	assert.Equal(t, 3, attempts)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, last, te)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	r := newRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	attempts := 0
	boom := errors.New("bad request")
	_, err := r.execute(context.Background(), func() (any, error) {
		attempts++
		return nil, boom
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, boom)
}

func TestRetryDoesNotRetryCircuitOpen(t *testing.T) {
	r := newRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	attempts := 0
	_, err := r.execute(context.Background(), func() (any, error) {
		attempts++
		return nil, ErrCircuitOpen
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	r := newRetryPolicy(RetryConfig{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.execute(ctx, func() (any, error) {
		attempts++
		return nil, &TransportError{Err: errors.New("flaky")}
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryDelaysGrowExponentially(t *testing.T) {
	base := 40 * time.Millisecond
	r := newRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: base, MaxDelay: time.Second})

	var stamps []time.Time
	_, err := r.execute(context.Background(), func() (any, error) {
		stamps = append(stamps, time.Now())
		return nil, &TransportError{Err: errors.New("flaky")}
	})
	require.Error(t, err)
	require.Len(t, stamps, 3)

	// Delay k is base*2^(k-1) with up to ±20% jitter; allow generous slack
	// on the upper bound for scheduling.
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, time.Duration(float64(base)*0.7))
	assert.GreaterOrEqual(t, second, time.Duration(float64(2*base)*0.7))
	assert.Greater(t, second, first)
}
