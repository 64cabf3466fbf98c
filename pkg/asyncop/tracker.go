// Package asyncop counts in-flight asynchronous operations and lets callers
// wait for the count to drain to zero.
package asyncop

import (
	"context"
	"sync"
)

// Tracker counts operations between Start and Finish. The zero value is
// ready to use.
type Tracker struct {
	mu      sync.Mutex
	pending int
	waiters []func()
}

// Start records the beginning of an operation.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.pending++
	t.mu.Unlock()
}

// Finish records the end of an operation. When the count reaches zero every
// queued waiter runs on the calling goroutine.
func (t *Tracker) Finish() {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		panic("asyncop: Finish without Start")
	}
	t.pending--
	var waiters []func()
	if t.pending == 0 {
		waiters = t.waiters
		t.waiters = nil
	}
	t.mu.Unlock()

	for _, w := range waiters {
		w()
	}
}

// Track runs fn between Start and Finish.
func (t *Tracker) Track(fn func()) {
	t.Start()
	defer t.Finish()
	fn()
}

// Pending returns the number of operations in flight.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Empty reports whether no operations are in flight.
func (t *Tracker) Empty() bool {
	return t.Pending() == 0
}

// WaitForOps runs onDrained once no operations are in flight; immediately
// when the tracker is already empty.
func (t *Tracker) WaitForOps(onDrained func()) {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		onDrained()
		return
	}
	t.waiters = append(t.waiters, onDrained)
	t.mu.Unlock()
}

// Wait blocks until no operations are in flight or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	t.WaitForOps(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
