// Package completion tracks a group of asynchronous sub-operations as one
// logical operation.
//
// A Completion is shared by the caller that issued the operation and by
// every sub-operation still in flight. Each owner holds one reference; the
// completion is destroyed when the last reference is dropped.
//
// Lifecycle:
//
//	c := completion.New()             // refs=1 (the caller)
//	c.SetRequestCount(n)              // exactly once
//	for each sub-op: c.Get(); dispatch(subop, c)
//	...transport goroutines call c.CompleteRequest(r), each dropping one ref
//	c.WaitForDurable() / c.SetDurableCallback(cb)
//	c.Release()                       // drops the caller's ref
//
// Results merge as follows: non-negative results are summed, the first
// negative result sticks and later negatives are discarded.
//
// A completion has two phases. "Applied" means the operation took effect,
// "durable" means it is persisted. A single-phase completion (New) reaches
// both at once; a two-phase completion (NewTwoPhase) becomes durable only
// after Commit.
//
// Misuse (setting the request count twice, completing more sub-operations
// than declared, double release, touching a destroyed completion) panics.
package completion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/transport"
)

// State is the lifecycle state of a Completion.
type State int32

const (
	// StatePending: sub-operations are still outstanding.
	StatePending State = iota
	// StateCallback: the result is set and callbacks are being delivered.
	StateCallback
	// StateComplete: the result is set and both phases have delivered their callbacks.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateCallback:
		return "CALLBACK"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Callback is invoked once per phase with the finished completion.
type Callback func(c *Completion)

// FinalizeFunc assembles the final result once every sub-operation has
// reported. It receives the merged result and returns the result exposed to
// callers.
type FinalizeFunc func(r int64) int64

// Completion is a reference-counted handle for one logical operation.
type Completion struct {
	countSet atomic.Bool
	pending  atomic.Int64
	sum      atomic.Int64 // sum of non-negative sub-results
	firstErr atomic.Int64 // first negative sub-result, 0 if none
	version  atomic.Uint64

	mu        sync.Mutex
	refs      int
	released  bool
	destroyed bool
	finalized bool
	state     State
	result    int64
	twoPhase  bool
	committed bool

	applied    bool
	durable    bool
	appliedCB  Callback
	durableCB  Callback
	appliedCh  chan struct{}
	durableCh  chan struct{}
	completeCh chan struct{}

	finalize  FinalizeFunc
	onDestroy func()
}

// New returns a single-phase completion holding one reference.
func New() *Completion {
	return &Completion{
		refs:       1,
		appliedCh:  make(chan struct{}),
		durableCh:  make(chan struct{}),
		completeCh: make(chan struct{}),
	}
}

// NewTwoPhase returns a completion whose durable phase waits for Commit.
func NewTwoPhase() *Completion {
	c := New()
	c.twoPhase = true
	return c
}

var _ transport.Completer = (*Completion)(nil)

// SetFinalizer installs the result assembly hook. It must be called before
// the request count is set.
func (c *Completion) SetFinalizer(fn FinalizeFunc) {
	if c.countSet.Load() {
		panic("completion: SetFinalizer after SetRequestCount")
	}
	c.mu.Lock()
	c.checkAlive()
	c.finalize = fn
	c.mu.Unlock()
}

// OnDestroy installs a hook run once when the last reference is dropped.
func (c *Completion) OnDestroy(fn func()) {
	c.mu.Lock()
	c.checkAlive()
	c.onDestroy = fn
	c.mu.Unlock()
}

// SetRequestCount declares how many sub-operations will report. With n == 0
// the completion finalizes before returning.
func (c *Completion) SetRequestCount(n uint32) {
	if !c.countSet.CompareAndSwap(false, true) {
		panic("completion: SetRequestCount called twice")
	}
	logger.Debug("Completion request count set", logger.KeyPending, n)

	if n == 0 {
		c.finalizeAndComplete()
		return
	}
	c.pending.Store(int64(n))
}

// CompleteRequest records one sub-operation result and drops the reference
// the sub-operation held. The last sub-operation triggers finalization.
func (c *Completion) CompleteRequest(r int64) {
	c.merge(r)

	for {
		p := c.pending.Load()
		if p <= 0 {
			panic("completion: CompleteRequest with no pending requests")
		}
		if c.pending.CompareAndSwap(p, p-1) {
			if p == 1 {
				c.finalizeAndComplete()
			}
			break
		}
	}

	c.Put()
}

// Complete sets the result of an operation that was never fanned out and
// delivers both phases (one-phase completions) or the applied phase.
// It does not drop a reference.
func (c *Completion) Complete(r int64) {
	if !c.countSet.CompareAndSwap(false, true) {
		panic("completion: Complete on a completion with a request count")
	}
	c.merge(r)
	c.finalizeAndComplete()
}

// Fail completes an operation that could not be dispatched with err.
func (c *Completion) Fail(err error) {
	r := transport.Result(err)
	if r >= 0 {
		panic(fmt.Sprintf("completion: Fail with non-error %v", err))
	}
	c.Complete(r)
}

func (c *Completion) merge(r int64) {
	switch {
	case r < 0:
		c.firstErr.CompareAndSwap(0, r)
	case r > 0:
		c.sum.Add(r)
	}
}

func (c *Completion) aggregate() int64 {
	if e := c.firstErr.Load(); e != 0 {
		return e
	}
	return c.sum.Load()
}

func (c *Completion) finalizeAndComplete() {
	c.mu.Lock()
	c.checkAlive()
	if c.finalized {
		c.mu.Unlock()
		panic("completion: finalized twice")
	}
	c.finalized = true
	fn := c.finalize
	c.finalize = nil
	c.mu.Unlock()

	r := c.aggregate()
	if fn != nil {
		r = fn(r)
	}

	logger.Debug("Completion finalized", logger.KeyResult, r)
	c.complete(r)
}

func (c *Completion) complete(r int64) {
	c.mu.Lock()
	c.result = r
	c.state = StateCallback
	c.applied = true
	close(c.appliedCh)
	cb := c.appliedCB
	c.appliedCB = nil
	durable := !c.twoPhase || c.committed
	c.mu.Unlock()

	if cb != nil {
		cb(c)
	}
	if durable {
		c.markDurable()
	}
}

// Commit marks a two-phase completion durable. Called before the applied
// phase, the durable phase follows it immediately.
func (c *Completion) Commit() {
	c.mu.Lock()
	c.checkAlive()
	if !c.twoPhase {
		c.mu.Unlock()
		panic("completion: Commit on a single-phase completion")
	}
	if c.committed {
		c.mu.Unlock()
		panic("completion: Commit called twice")
	}
	c.committed = true
	fire := c.applied
	c.mu.Unlock()

	if fire {
		c.markDurable()
	}
}

func (c *Completion) markDurable() {
	c.mu.Lock()
	c.durable = true
	close(c.durableCh)
	cb := c.durableCB
	c.durableCB = nil
	c.mu.Unlock()

	if cb != nil {
		cb(c)
	}

	c.mu.Lock()
	c.state = StateComplete
	close(c.completeCh)
	c.mu.Unlock()
}

// SetAppliedCallback installs the applied-phase callback. If the phase has
// already been reached the callback runs on the calling goroutine.
func (c *Completion) SetAppliedCallback(cb Callback) {
	c.setCallback(cb, &c.appliedCB, func() bool { return c.applied })
}

// SetDurableCallback installs the durable-phase callback. If the phase has
// already been reached the callback runs on the calling goroutine.
func (c *Completion) SetDurableCallback(cb Callback) {
	c.setCallback(cb, &c.durableCB, func() bool { return c.durable })
}

func (c *Completion) setCallback(cb Callback, slot *Callback, reached func() bool) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	c.checkAlive()
	if *slot != nil {
		c.mu.Unlock()
		panic("completion: callback already set")
	}
	if reached() {
		c.mu.Unlock()
		cb(c)
		return
	}
	*slot = cb
	c.mu.Unlock()
}

// WaitForApplied blocks until the applied phase is reached.
func (c *Completion) WaitForApplied() { <-c.appliedCh }

// WaitForDurable blocks until the durable phase is reached.
func (c *Completion) WaitForDurable() { <-c.durableCh }

// WaitForCompleteAndCallback blocks until both phases have delivered their
// callbacks.
func (c *Completion) WaitForCompleteAndCallback() { <-c.completeCh }

// Wait blocks until the completion is durable or ctx is done, and returns
// the operation error.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.durableCh:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsApplied reports whether the applied phase has been reached.
func (c *Completion) IsApplied() bool { return isClosed(c.appliedCh) }

// IsDurable reports whether the durable phase has been reached.
func (c *Completion) IsDurable() bool { return isClosed(c.durableCh) }

// IsCompleteAndCallback reports whether both phases delivered their callbacks.
func (c *Completion) IsCompleteAndCallback() bool { return isClosed(c.completeCh) }

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// State returns the lifecycle state.
func (c *Completion) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of sub-operations still outstanding.
func (c *Completion) Pending() int64 { return c.pending.Load() }

// ReturnValue returns the final result. Only meaningful once applied.
func (c *Completion) ReturnValue() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the final result as an error, nil on success.
func (c *Completion) Err() error { return transport.Error(c.ReturnValue()) }

// Version returns the object version recorded with the result.
func (c *Completion) Version() uint64 { return c.version.Load() }

// SetVersion records the object version observed by a sub-operation.
func (c *Completion) SetVersion(v uint64) { c.version.Store(v) }

// Get takes an additional reference.
func (c *Completion) Get() {
	c.mu.Lock()
	c.checkAlive()
	c.refs++
	c.mu.Unlock()
}

// Put drops a reference, destroying the completion when none remain.
func (c *Completion) Put() {
	c.mu.Lock()
	c.checkAlive()
	c.refs--
	if c.refs > 0 {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	hook := c.onDestroy
	c.onDestroy = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Release drops the caller's reference. Calling it twice panics.
func (c *Completion) Release() {
	c.mu.Lock()
	c.checkAlive()
	if c.released {
		c.mu.Unlock()
		panic("completion: Release called twice")
	}
	c.released = true
	c.mu.Unlock()

	c.Put()
}

// Refs returns the current reference count.
func (c *Completion) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// checkAlive must be called with mu held.
func (c *Completion) checkAlive() {
	if c.destroyed {
		c.mu.Unlock()
		panic("completion: use after destroy")
	}
}
