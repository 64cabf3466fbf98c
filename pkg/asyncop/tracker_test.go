package asyncop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForOpsWhenEmpty(t *testing.T) {
	t.Parallel()

	var tr Tracker
	called := false
	tr.WaitForOps(func() { called = true })
	assert.True(t, called)
	assert.True(t, tr.Empty())
}

func TestWaitForOpsDeferredUntilDrain(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Start()
	tr.Start()

	var calls atomic.Int32
	tr.WaitForOps(func() { calls.Add(1) })
	tr.WaitForOps(func() { calls.Add(1) })

	tr.Finish()
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, tr.Pending())

	tr.Finish()
	assert.Equal(t, int32(2), calls.Load())

	// Waiters run once.
	tr.Start()
	tr.Finish()
	assert.Equal(t, int32(2), calls.Load())
}

func TestFinishWithoutStartPanics(t *testing.T) {
	t.Parallel()

	var tr Tracker
	assert.PanicsWithValue(t, "asyncop: Finish without Start", func() { tr.Finish() })
}

func TestWaitContext(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Finish()
	}()
	require.NoError(t, tr.Wait(context.Background()))
}

func TestTrackConcurrent(t *testing.T) {
	t.Parallel()

	var tr Tracker
	var wg sync.WaitGroup
	release := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track(func() { <-release })
		}()
	}

	require.Eventually(t, func() bool { return tr.Pending() == 16 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, tr.Wait(context.Background()))
	wg.Wait()
	assert.True(t, tr.Empty())
}
