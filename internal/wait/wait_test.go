package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBudget(t *testing.T) {
	cases := []struct {
		max, interval time.Duration
		want          int
	}{
		{max: time.Second, interval: 100 * time.Millisecond, want: 10},
		{max: 5 * time.Minute, interval: time.Second, want: 300},
		{max: 50 * time.Millisecond, interval: time.Second, want: 1},
		{max: time.Second, interval: 0, want: 1},
	}

	for _, c := range cases {
		b := NewBudget(c.max, c.interval)
		require.Equal(t, c.want, b.Iterations, "max=%v interval=%v", c.max, c.interval)
	}
}

func TestUntilNeverSucceeds(t *testing.T) {
	b := NewBudget(20*time.Millisecond, 2*time.Millisecond)
	calls := 0

	err := Until(context.Background(), b, func(context.Context) bool {
		calls++
		return false
	})

	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 10, calls)
}

func TestUntilStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Budget{Interval: time.Millisecond, Iterations: 50}.Until(context.Background(), func(context.Context) bool {
		calls++
		return calls == 3
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestUntilZeroIterationsStillEvaluatesOnce(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Budget{}, func(context.Context) bool {
		calls++
		return false
	})

	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 1, calls)
}

func TestUntilContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Until(ctx, Budget{Interval: time.Hour, Iterations: 3}, func(context.Context) bool {
		calls++
		cancel()
		return false
	})

	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 1, calls)
}

func TestSleepZero(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))
}
