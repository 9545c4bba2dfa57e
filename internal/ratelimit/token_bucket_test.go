package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLimiter(cfg BucketConfig) *Limiter {
	return New(map[string]BucketConfig{ServiceSearch: cfg})
}

func TestAcquire_ImmediateWhileTokensRemain(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 3, RefillPerSec: 0.01, MaxQueueDepth: 5, MaxWait: time.Second})
	defer l.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx, ServiceSearch), "acquire %d", i+1)
	}

	stats := l.GetStats()[ServiceSearch]
	assert.Equal(t, uint64(3), stats.Granted)
	assert.Less(t, stats.Tokens, 1.0)
}

func TestAcquire_QueueFullFailsSynchronously(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 2, MaxWait: 5 * time.Second})
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, ServiceSearch)) // drain the only token

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Resolved by Close at the end of the test.
			_ = l.Acquire(ctx, ServiceSearch)
		}()
	}

	require.Eventually(t, func() bool {
		return l.GetStats()[ServiceSearch].QueueDepth == 2
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	err := l.Acquire(ctx, ServiceSearch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "queue-full must not block")

	// The rejection must not have consumed a token.
	assert.Equal(t, uint64(1), l.GetStats()[ServiceSearch].Rejected)

	l.Close()
	wg.Wait()
}

func TestAcquire_WaitersResolveFIFO(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 25, MaxQueueDepth: 10, MaxWait: 5 * time.Second})
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, ServiceSearch))

	const waiters = 4
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, ServiceSearch); err == nil {
				order <- i
			}
		}()
		// Wait until this waiter is queued before launching the next so
		// enqueue order matches launch order.
		require.Eventually(t, func() bool {
			return l.GetStats()[ServiceSearch].QueueDepth >= i+1
		}, time.Second, 2*time.Millisecond)
	}

	wg.Wait()
	close(order)

	var got []int
	for i := range order {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, got, "waiters must resolve in enqueue order")
}

func TestAcquire_MaxWaitTimeout(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 5, MaxWait: 60 * time.Millisecond})
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, ServiceSearch))

	start := time.Now()
	err := l.Acquire(ctx, ServiceSearch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, uint64(1), l.GetStats()[ServiceSearch].TimedOut)
}

func TestAcquire_CancelledWaiterLeavesQueue(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 5, MaxQueueDepth: 5, MaxWait: 5 * time.Second})
	defer l.Close()

	require.NoError(t, l.Acquire(context.Background(), ServiceSearch))

	cancelCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- l.Acquire(cancelCtx, ServiceSearch)
	}()
	require.Eventually(t, func() bool {
		return l.GetStats()[ServiceSearch].QueueDepth == 1
	}, time.Second, 2*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- l.Acquire(context.Background(), ServiceSearch)
	}()
	require.Eventually(t, func() bool {
		return l.GetStats()[ServiceSearch].QueueDepth == 2
	}, time.Second, 2*time.Millisecond)

	cancel()

	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The second waiter inherits the head of the queue and still resolves.
	select {
	case err := <-secondErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second waiter never resolved after cancellation of the first")
	}
}

func TestRefill_CappedAtCapacity(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 2, RefillPerSec: 1000, MaxQueueDepth: 5, MaxWait: time.Second})
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, ServiceSearch))
	require.NoError(t, l.Acquire(ctx, ServiceSearch))

	time.Sleep(20 * time.Millisecond) // would refill ~20 tokens uncapped

	stats := l.GetStats()[ServiceSearch]
	assert.LessOrEqual(t, stats.Tokens, stats.Capacity)
	assert.InDelta(t, 2.0, stats.Tokens, 0.01)
}

func TestTryAcquire(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 5, MaxWait: time.Second})
	defer l.Close()

	assert.True(t, l.TryAcquire(ServiceSearch))
	assert.False(t, l.TryAcquire(ServiceSearch), "no tokens left")
}

func TestClose_FailsQueuedWaiters(t *testing.T) {
	l := newTestLimiter(BucketConfig{Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 5, MaxWait: 10 * time.Second})

	require.NoError(t, l.Acquire(context.Background(), ServiceSearch))

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Acquire(context.Background(), ServiceSearch)
	}()
	require.Eventually(t, func() bool {
		return l.GetStats()[ServiceSearch].QueueDepth == 1
	}, time.Second, 2*time.Millisecond)

	l.Close()

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)

	// Acquire after close fails immediately.
	assert.ErrorIs(t, l.Acquire(context.Background(), ServiceSearch), ErrClosed)
}

func TestUnknownServiceUsesFallbackConfig(t *testing.T) {
	l := New(map[string]BucketConfig{})
	defer l.Close()

	require.NoError(t, l.Acquire(context.Background(), "geocode"))

	stats := l.GetStats()["geocode"]
	assert.Equal(t, DefaultBucketConfig().Capacity, stats.Capacity)
}
