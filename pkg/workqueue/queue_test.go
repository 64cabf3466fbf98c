package workqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsItems(t *testing.T) {
	q := New("test", Config{Workers: 2, QueueSize: 4})
	q.Start()
	defer q.Stop(time.Second)

	var n atomic.Int32
	for range 20 {
		require.True(t, q.Queue(func() { n.Add(1) }))
	}

	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(20), n.Load())
	assert.Equal(t, int64(20), q.Completed())
	assert.Zero(t, q.Pending())
}

func TestQueue_FIFOWithSingleWorker(t *testing.T) {
	q := New("fifo", Config{Workers: 1, QueueSize: 16})
	q.Start()
	defer q.Stop(time.Second)

	var mu sync.Mutex
	var order []int
	for i := range 10 {
		q.Queue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueue_QueueFromWorker(t *testing.T) {
	q := New("reentrant", Config{Workers: 1, QueueSize: 4})
	q.Start()
	defer q.Stop(time.Second)

	done := make(chan struct{})
	q.Queue(func() {
		q.Queue(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested item never ran")
	}
}

func TestQueue_QueueFromWorkerWhenFull(t *testing.T) {
	q := New("overflow", Config{Workers: 1, QueueSize: 1})
	q.Start()
	defer q.Stop(time.Second)

	var mu sync.Mutex
	var order []int
	queued := make(chan struct{})
	q.Queue(func() {
		for i := range 8 {
			assert.True(t, q.Queue(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			}))
		}
		close(queued)
	})

	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("worker blocked queueing onto its own full queue")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestQueue_QueueAfter(t *testing.T) {
	q := New("delayed", DefaultConfig())
	q.Start()
	defer q.Stop(time.Second)

	start := time.Now()
	ran := make(chan time.Duration, 1)
	require.True(t, q.QueueAfter(20*time.Millisecond, func() { ran <- time.Since(start) }))
	assert.Equal(t, 1, q.Pending())

	require.NoError(t, q.Drain(context.Background()))
	assert.GreaterOrEqual(t, <-ran, 20*time.Millisecond)
}

func TestQueue_StopCancelsDelayed(t *testing.T) {
	q := New("cancel", DefaultConfig())
	q.Start()

	var ran atomic.Bool
	q.QueueAfter(time.Hour, func() { ran.Store(true) })
	q.Stop(time.Second)

	assert.Zero(t, q.Pending())
	assert.False(t, ran.Load())
	assert.False(t, q.Queue(func() {}), "queue must reject items after Stop")
	assert.False(t, q.QueueAfter(time.Millisecond, func() {}))
}

func TestQueue_StopDrainsQueued(t *testing.T) {
	q := New("drain", Config{Workers: 1, QueueSize: 8})

	var n atomic.Int32
	for range 5 {
		q.Queue(func() { n.Add(1) })
	}
	q.Start()
	q.Stop(time.Second)

	assert.Equal(t, int32(5), n.Load())
}

func TestQueue_StopNotStarted(t *testing.T) {
	q := New("idle", DefaultConfig())
	q.Stop(time.Second)
	q.Stop(time.Second)
	q.Start() // no-op after stop
}

func TestQueue_DrainContext(t *testing.T) {
	q := New("slow", Config{Workers: 1, QueueSize: 1})
	q.Start()
	defer q.Stop(time.Second)

	release := make(chan struct{})
	q.Queue(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
	close(release)
	assert.NoError(t, q.Drain(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1000, cfg.QueueSize)

	q := New("zero", Config{})
	assert.Equal(t, 4, q.workers)
	assert.Equal(t, 1000, cap(q.items))
}
