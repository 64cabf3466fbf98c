// Package workqueue runs callbacks on a fixed pool of worker goroutines.
//
// It is used to move work off goroutines that must not block or re-enter a
// lock they already hold, such as transport callbacks that need to start a
// new round trip.
package workqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/asyncop"
)

// Config configures a Queue.
type Config struct {
	// Workers is the number of worker goroutines.
	Workers int

	// QueueSize is the capacity of the worker channel. Items queued while
	// it is full wait in an overflow list, so Queue never blocks and a
	// worker may queue onto its own queue.
	QueueSize int
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 1000,
	}
}

// Queue is a pool of workers executing queued functions in FIFO order.
type Queue struct {
	name    string
	items   chan func()
	workers int
	ops     asyncop.Tracker // queued, delayed and running items

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
	timers  map[*time.Timer]struct{}

	// overflow holds items, in order, that did not fit in the channel.
	omu      sync.Mutex
	overflow []func()

	completed atomic.Int64
}

// New creates a queue. Items queued before Start run once it is called.
func New(name string, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	return &Queue{
		name:      name,
		items:     make(chan func(), cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		timers:    make(map[*time.Timer]struct{}),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	logger.Info("Starting work queue", "queue", q.name, logger.KeyWorkers, q.workers)

	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(i)
	}

	go func() {
		q.wg.Wait()
		close(q.stoppedCh)
	}()
}

// Stop cancels delayed items, lets the workers drain what is already queued
// and waits up to timeout for them to exit.
func (q *Queue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	timers := q.timers
	q.timers = nil
	close(q.stopCh)
	q.mu.Unlock()

	for t := range timers {
		if t.Stop() {
			q.ops.Finish()
		}
	}

	if !started {
		return
	}

	logger.Info("Stopping work queue", "queue", q.name, logger.KeyPending, q.Pending())

	select {
	case <-q.stoppedCh:
		logger.Debug("Work queue stopped", "queue", q.name)
	case <-time.After(timeout):
		logger.Warn("Work queue stop timed out", "queue", q.name, logger.KeyPending, q.Pending())
	}
}

// Queue appends fn. It returns false once the queue is stopped.
func (q *Queue) Queue(fn func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return false
	}

	q.ops.Start()
	q.push(fn)
	return true
}

// push sends fn to the workers, or appends it to the overflow list when the
// channel is full or older items are already waiting there.
func (q *Queue) push(fn func()) {
	q.omu.Lock()
	defer q.omu.Unlock()
	if len(q.overflow) == 0 {
		select {
		case q.items <- fn:
			return
		default:
		}
	}
	q.overflow = append(q.overflow, fn)
}

// refill moves overflow items into the channel while it has room.
func (q *Queue) refill() {
	q.omu.Lock()
	defer q.omu.Unlock()
	for len(q.overflow) > 0 {
		select {
		case q.items <- q.overflow[0]:
			q.overflow[0] = nil
			q.overflow = q.overflow[1:]
		default:
			return
		}
	}
}

// QueueAfter queues fn once delay has elapsed. Items still waiting when the
// queue stops are dropped.
func (q *Queue) QueueAfter(delay time.Duration, fn func()) bool {
	if delay <= 0 {
		return q.Queue(fn)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}

	q.ops.Start()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if _, ok := q.timers[t]; !ok {
			// Stop already accounted for this item.
			q.mu.Unlock()
			return
		}
		delete(q.timers, t)
		q.mu.Unlock()

		if !q.Queue(fn) {
			q.ops.Finish()
			return
		}
		// Queue took its own reference for the run.
		q.ops.Finish()
	})
	q.timers[t] = struct{}{}
	return true
}

// Pending returns the number of queued, delayed and running items.
func (q *Queue) Pending() int {
	return q.ops.Pending()
}

// Completed returns the number of items executed so far.
func (q *Queue) Completed() int64 {
	return q.completed.Load()
}

// Drain blocks until every queued, delayed and running item has finished.
func (q *Queue) Drain(ctx context.Context) error {
	return q.ops.Wait(ctx)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	logger.Debug("Work queue worker started", "queue", q.name, "worker", id)

	for {
		select {
		case fn := <-q.items:
			q.run(fn)
		case <-q.stopCh:
			q.drain()
			logger.Debug("Work queue worker stopped", "queue", q.name, "worker", id)
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case fn := <-q.items:
			q.run(fn)
		default:
			return
		}
	}
}

func (q *Queue) run(fn func()) {
	defer q.ops.Finish()
	fn()
	q.completed.Add(1)

	// Every overflow item was appended while the channel was full, so a
	// run always follows it and moves it forward.
	q.refill()
}
