package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSupervisor(retries int) (*Supervisor, *[]time.Duration) {
	var slept []time.Duration
	s := NewSupervisor(Config{Retries: retries, InitialBackoff: time.Second, Multiplier: 2})
	s.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestLaunch_FailsTwiceThenSucceeds(t *testing.T) {
	s, slept := recordingSupervisor(3)

	calls := 0
	v, err := Launch(context.Background(), s, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errors.New("spawn failed")
		}
		return "browser", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "browser", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestLaunch_Exhausted(t *testing.T) {
	s, slept := recordingSupervisor(3)
	boom := errors.New("no binary")

	calls := 0
	_, err := Launch(context.Background(), s, func(context.Context, int) (string, error) {
		calls++
		return "", boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *slept)
}

func TestLaunch_ReplaceableBackoff(t *testing.T) {
	s, slept := recordingSupervisor(2)
	s.Backoff = func(int) time.Duration { return time.Millisecond }

	_, _ = Launch(context.Background(), s, func(context.Context, int) (string, error) { return "", errors.New("x") })
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, *slept)
}

func TestLaunch_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSupervisor(Config{Retries: 3, InitialBackoff: time.Hour, Multiplier: 2})

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Launch(ctx, s, func(context.Context, int) (string, error) {
		calls++
		return "", errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(3, cfg))
	assert.Equal(t, 30*time.Second, calculateBackoff(10, cfg))
}
