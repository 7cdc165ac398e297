package renfe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterMinDelay(t *testing.T) {
	l := NewLimiter(LimiterOptions{
		MinDelay:     100 * time.Millisecond,
		MaxPerWindow: 100,
		Window:       time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterSlidingWindow(t *testing.T) {
	l := NewLimiter(LimiterOptions{
		MinDelay:     0,
		MaxPerWindow: 3,
		Window:       500 * time.Millisecond,
	})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	require.Less(t, time.Since(start), 200*time.Millisecond, "window slots must not delay")

	// the fourth request has to wait for the oldest slot to age out
	start = time.Now()
	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestLimiterWaitCancellable(t *testing.T) {
	l := NewLimiter(LimiterOptions{
		MinDelay:     time.Minute,
		MaxPerWindow: 100,
		Window:       time.Minute,
	})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterBackoff(t *testing.T) {
	l := NewLimiter(LimiterOptions{
		MinDelay:     0,
		MaxPerWindow: 100,
		Window:       time.Minute,
		BackoffBase:  2,
		BackoffMax:   5 * time.Second,
	})

	require.Equal(t, time.Duration(0), l.BackoffDelay())

	l.RecordError()
	require.Equal(t, 2*time.Second, l.BackoffDelay())
	l.RecordError()
	require.Equal(t, 4*time.Second, l.BackoffDelay())
	l.RecordError()
	require.Equal(t, 5*time.Second, l.BackoffDelay(), "delay caps at BackoffMax")

	l.RecordSuccess()
	require.Equal(t, time.Duration(0), l.BackoffDelay())
}

func TestLimiterConcurrentWaiters(t *testing.T) {
	l := NewLimiter(LimiterOptions{
		MinDelay:     10 * time.Millisecond,
		MaxPerWindow: 100,
		Window:       time.Minute,
	})
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			require.NoError(t, l.Wait(ctx))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("waiter starved")
		}
	}
}
