// Package watcher keeps a watch registered on a remote object.
//
// A Watcher registers a watch through the transport and re-establishes it
// when the transport reports the session as broken. Every state change goes
// through one transition function checked against an allowed-transitions
// table:
//
//	UNREGISTERED --register--> REGISTERING --ok--> REGISTERED
//	                                 |--err--> UNREGISTERED
//	REGISTERED --session error--> ERROR --rewatch--> REWATCHING
//	REWATCHING --ok--> REGISTERED
//	REWATCHING --blocklisted|not found--> UNREGISTERED
//	REWATCHING --other error--> ERROR (rewatch retried after a delay)
//	REGISTERED|ERROR --unregister--> UNREGISTERED
//
// An unregister that arrives while a register or rewatch is in flight is
// stored and replayed once that operation lands. Rewatches always run on
// the work queue, never on the goroutine that delivered the error.
//
// Inbound notifications go to a Handler unless notifications are blocked,
// in which case they are acknowledged with an empty payload and dropped.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/internal/telemetry"
	"github.com/marmos91/objio/pkg/asyncop"
	"github.com/marmos91/objio/pkg/completion"
	"github.com/marmos91/objio/pkg/transport"
)

// WorkQueue runs callbacks off the calling goroutine.
// *workqueue.Queue implements it.
type WorkQueue interface {
	Queue(fn func()) bool
	QueueAfter(delay time.Duration, fn func()) bool
}

// Config tunes a Watcher.
type Config struct {
	// RewatchDelay is the first retry delay after a transient rewatch
	// failure. It doubles on each consecutive failure.
	RewatchDelay time.Duration

	// MaxRewatchDelay caps the retry delay.
	MaxRewatchDelay time.Duration

	// NotifyTimeout bounds how long SendNotify waits for acks.
	NotifyTimeout time.Duration

	// OnRewatchComplete, if set, runs on the work queue after every rewatch
	// attempt with its result.
	OnRewatchComplete func(err error)
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		RewatchDelay:    100 * time.Millisecond,
		MaxRewatchDelay: 10 * time.Second,
		NotifyTimeout:   DefaultNotifyTimeout,
	}
}

// Watcher maintains a watch on one object for one client.
type Watcher struct {
	tr       transport.Transport
	queue    WorkQueue
	handler  Handler
	cfg      Config
	metrics  *Metrics
	notifier *Notifier
	baseCtx  context.Context

	// ops counts notification handler calls in flight.
	ops asyncop.Tracker

	mu                sync.RWMutex
	object            string
	state             State
	handle            transport.WatchHandle
	blocked           int
	blocklisted       bool
	pendingUnregister func()
	rewatchFailures   int
}

var _ transport.WatchContext = (*Watcher)(nil)

// New creates an unregistered watcher on object. handler may be nil, in
// which case every notification is acknowledged with an empty payload.
func New(tr transport.Transport, queue WorkQueue, object string, handler Handler, cfg Config, metrics *Metrics) *Watcher {
	def := DefaultConfig()
	if cfg.RewatchDelay <= 0 {
		cfg.RewatchDelay = def.RewatchDelay
	}
	if cfg.MaxRewatchDelay <= 0 {
		cfg.MaxRewatchDelay = def.MaxRewatchDelay
	}

	lc := logger.NewLogContext(strconv.FormatUint(tr.ClientID(), 10)).WithOp("watch")

	return &Watcher{
		tr:       tr,
		queue:    queue,
		handler:  handler,
		cfg:      cfg,
		metrics:  metrics,
		notifier: NewNotifier(tr, queue, object, cfg.NotifyTimeout, metrics),
		baseCtx:  logger.WithContext(context.Background(), lc),
		object:   object,
	}
}

// transition moves to state to. Must be called with mu held for writing.
func (w *Watcher) transition(to State) {
	from := w.state
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("watcher: illegal transition %s -> %s", from, to))
	}
	w.state = to
	w.metrics.ObserveTransition(from, to)

	logger.Debug("Watch state transition",
		logger.KeyObject, w.object,
		logger.KeyFromState, from.String(),
		logger.KeyToState, to.String())
}

// unlockAndPanic releases mu before reporting a contract violation.
func (w *Watcher) unlockAndPanic(msg string) {
	w.mu.Unlock()
	panic(msg)
}

// ============================================================================
// Register / unregister
// ============================================================================

// RegisterWatch starts registering the watch. It must only be called while
// unregistered. onFinish receives the registration result.
func (w *Watcher) RegisterWatch(ctx context.Context, onFinish func(error)) {
	w.mu.Lock()
	if w.state != StateUnregistered {
		w.unlockAndPanic(fmt.Sprintf("watcher: register while %s", w.state))
	}
	w.transition(StateRegistering)

	ctx, span := telemetry.StartWatchSpan(ctx, "register", w.object)
	w.handle = w.tr.Watch(ctx, w.object, w, transport.CompleterFunc(func(r int64) {
		err := transport.Error(r)
		telemetry.EndWithError(span, err)
		w.handleRegister(err, onFinish)
	}))
	w.mu.Unlock()
}

func (w *Watcher) handleRegister(err error, onFinish func(error)) {
	w.mu.Lock()
	if w.state != StateRegistering {
		w.unlockAndPanic(fmt.Sprintf("watcher: register completed while %s", w.state))
	}

	unregister := w.pendingUnregister
	w.pendingUnregister = nil

	if err != nil {
		logger.Error("Failed to register watch", logger.KeyObject, w.object, logger.Err(err))
		w.handle = 0
		w.blocklisted = errors.Is(err, transport.ErrBlocklisted)
		w.transition(StateUnregistered)
	} else {
		w.blocklisted = false
		w.transition(StateRegistered)
	}
	w.mu.Unlock()

	onFinish(err)

	if unregister != nil {
		unregister()
	}
}

// UnregisterWatch tears the watch down. While a register or rewatch is in
// flight the request is deferred until it lands; only one deferred
// unregister may be outstanding. onFinish receives the first error of the
// unwatch and the following watch flush.
func (w *Watcher) UnregisterWatch(ctx context.Context, onFinish func(error)) {
	w.mu.Lock()
	switch w.state {
	case StateRegistering, StateRewatching:
		if w.pendingUnregister != nil {
			w.unlockAndPanic("watcher: unregister already pending")
		}
		logger.Debug("Delaying unregister until register completes", logger.KeyObject, w.object)
		w.pendingUnregister = func() { w.UnregisterWatch(ctx, onFinish) }
		w.mu.Unlock()
		return

	case StateRegistered, StateError:
		w.transition(StateUnregistered)
		handle := w.handle
		w.handle = 0
		w.mu.Unlock()

		w.unwatchAndFlush(ctx, handle, onFinish)
		return
	}
	w.mu.Unlock()

	onFinish(nil)
}

// unwatchAndFlush removes the watch and then waits for callbacks already
// queued for it, so none arrive after onFinish.
func (w *Watcher) unwatchAndFlush(ctx context.Context, handle transport.WatchHandle, onFinish func(error)) {
	ctx, span := telemetry.StartWatchSpan(ctx, "unregister", w.Object(),
		telemetry.WatchHandle(uint64(handle)))

	flush := func(unwatchErr error) {
		w.tr.WatchFlush(ctx, transport.CompleterFunc(func(r int64) {
			err := unwatchErr
			if err == nil {
				err = transport.Error(r)
			}
			telemetry.EndWithError(span, err)
			onFinish(err)
		}))
	}

	// A failed rewatch leaves no live handle to remove.
	if handle == 0 {
		flush(nil)
		return
	}

	w.tr.Unwatch(ctx, handle, transport.CompleterFunc(func(r int64) {
		err := transport.Error(r)
		if err != nil {
			logger.Warn("Failed to unwatch", logger.KeyWatchHandle, uint64(handle), logger.Err(err))
		}
		flush(err)
	}))
}

// ============================================================================
// Session errors and rewatch
// ============================================================================

// HandleError is the transport's report that the session behind handle
// broke. Only an error on the current handle while REGISTERED starts a
// rewatch; anything else is stale and ignored.
func (w *Watcher) HandleError(handle transport.WatchHandle, err error) {
	logger.Error("Watch session error",
		logger.KeyObject, w.Object(),
		logger.KeyWatchHandle, uint64(handle),
		logger.Err(err))
	w.metrics.ObserveSessionError()

	w.mu.Lock()
	if w.state != StateRegistered || handle != w.handle {
		w.mu.Unlock()
		return
	}
	if errors.Is(err, transport.ErrBlocklisted) {
		w.blocklisted = true
	}
	w.transition(StateError)
	w.mu.Unlock()

	if !w.queue.Queue(w.rewatch) {
		logger.Warn("Work queue stopped, rewatch dropped", logger.KeyObject, w.Object())
	}
}

// rewatch runs on the work queue.
func (w *Watcher) rewatch() {
	w.mu.Lock()
	if w.state != StateError {
		w.mu.Unlock()
		return
	}
	w.transition(StateRewatching)
	req := newRewatchRequest(w, w.object, w.handle, w.handleRewatch)
	w.mu.Unlock()

	logger.Info("Re-registering watch", logger.KeyObject, req.object, logger.KeyAttempt, w.attempts()+1)
	req.send()
}

func (w *Watcher) attempts() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rewatchFailures
}

func (w *Watcher) handleRewatch(err error) {
	w.mu.Lock()
	if w.state != StateRewatching {
		w.unlockAndPanic(fmt.Sprintf("watcher: rewatch completed while %s", w.state))
	}

	var retryAfter time.Duration
	switch {
	case err == nil:
		w.rewatchFailures = 0
		w.blocklisted = false
		w.transition(StateRegistered)
		w.metrics.ObserveRewatch(ResultSuccess)

	case transport.IsFatalWatchError(err):
		w.blocklisted = errors.Is(err, transport.ErrBlocklisted)
		w.handle = 0
		w.transition(StateUnregistered)
		w.metrics.ObserveRewatch(ResultFatal)

	default:
		w.rewatchFailures++
		retryAfter = w.retryDelay(w.rewatchFailures)
		w.transition(StateError)
		w.metrics.ObserveRewatch(ResultTransient)
	}

	unregister := w.pendingUnregister
	w.pendingUnregister = nil
	object := w.object
	w.mu.Unlock()

	if retryAfter > 0 {
		logger.Warn("Rewatch failed, retrying",
			logger.KeyObject, object,
			logger.KeyDelay, retryAfter.String(),
			logger.Err(err))
		w.queue.QueueAfter(retryAfter, w.rewatch)
	}

	w.queue.Queue(func() { w.handleRewatchComplete(err) })

	if unregister != nil {
		unregister()
	}
}

// retryDelay is RewatchDelay doubled per consecutive failure, capped at
// MaxRewatchDelay.
func (w *Watcher) retryDelay(failures int) time.Duration {
	d := w.cfg.RewatchDelay
	for i := 1; i < failures && d < w.cfg.MaxRewatchDelay; i++ {
		d *= 2
	}
	return min(d, w.cfg.MaxRewatchDelay)
}

func (w *Watcher) handleRewatchComplete(err error) {
	if err == nil {
		logger.Info("Watch re-registered", logger.KeyObject, w.Object(), logger.KeyWatchHandle, uint64(w.Handle()))
	}
	if w.cfg.OnRewatchComplete != nil {
		w.cfg.OnRewatchComplete(err)
	}
}

// ============================================================================
// Notifications
// ============================================================================

// HandleNotify is the transport's delivery of an inbound notification.
func (w *Watcher) HandleNotify(notifyID uint64, handle transport.WatchHandle, notifierID uint64, payload []byte) {
	w.ops.Start()
	defer w.ops.Finish()

	if w.NotificationsBlocked() || w.handler == nil {
		w.metrics.ObserveNotification(true)
		w.AcknowledgeNotify(w.baseCtx, notifyID, handle, nil)
		return
	}

	w.metrics.ObserveNotification(false)
	w.handler.HandleNotify(&Notification{
		NotifyID:   notifyID,
		Handle:     handle,
		NotifierID: notifierID,
		Payload:    payload,
		w:          w,
	})
}

// AcknowledgeNotify replies to a notification.
func (w *Watcher) AcknowledgeNotify(ctx context.Context, notifyID uint64, handle transport.WatchHandle, reply []byte) {
	w.tr.NotifyAck(ctx, w.Object(), notifyID, handle, reply)
}

// BlockNotifies suppresses notification delivery and calls onFinish once
// every handler call already in flight has returned. Calls nest.
func (w *Watcher) BlockNotifies(onFinish func()) {
	w.mu.Lock()
	w.blocked++
	logger.Debug("Notifications blocked", logger.KeyObject, w.object, "blocked_count", w.blocked)
	w.mu.Unlock()

	w.ops.WaitForOps(onFinish)
}

// UnblockNotifies undoes one BlockNotifies.
func (w *Watcher) UnblockNotifies() {
	w.mu.Lock()
	if w.blocked == 0 {
		w.unlockAndPanic("watcher: unblock without block")
	}
	w.blocked--
	logger.Debug("Notifications unblocked", logger.KeyObject, w.object, "blocked_count", w.blocked)
	w.mu.Unlock()
}

// NotificationsBlocked reports whether delivery is suppressed.
func (w *Watcher) NotificationsBlocked() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocked > 0
}

// SendNotify notifies every watcher of the object, this one included.
func (w *Watcher) SendNotify(ctx context.Context, payload []byte, resp *transport.NotifyResponse, onFinish func(error)) {
	w.notifier.Notify(ctx, payload, resp, onFinish)
}

// Flush calls onFinish once every notify sent through this watcher has
// completed.
func (w *Watcher) Flush(onFinish func(error)) {
	w.notifier.Flush(onFinish)
}

// ============================================================================
// Accessors
// ============================================================================

// Object returns the watched object name.
func (w *Watcher) Object() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.object
}

// SetObject changes the watched object. Only valid while unregistered.
func (w *Watcher) SetObject(object string) {
	w.mu.Lock()
	if w.state != StateUnregistered {
		w.unlockAndPanic(fmt.Sprintf("watcher: set object while %s", w.state))
	}
	w.object = object
	w.mu.Unlock()

	w.notifier.setObject(object)
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Handle returns the current watch handle, zero when none.
func (w *Watcher) Handle() transport.WatchHandle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.handle
}

// ClientID returns the id of the client owning the watch.
func (w *Watcher) ClientID() uint64 { return w.tr.ClientID() }

// IsRegistered reports whether the watch is registered (or errored and
// about to be re-registered).
func (w *Watcher) IsRegistered() bool {
	s := w.State()
	return s == StateRegistered || s == StateError || s == StateRewatching
}

// IsUnregistered reports whether no watch is registered or in flight.
func (w *Watcher) IsUnregistered() bool {
	return w.State() == StateUnregistered
}

// IsBlocklisted reports whether the last session ended because the client
// was blocklisted.
func (w *Watcher) IsBlocklisted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocklisted
}

// Notifier returns the watcher's notifier.
func (w *Watcher) Notifier() *Notifier { return w.notifier }

// Close releases the watcher. It panics if the watch is still registered.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.state == StateRegistered {
		w.unlockAndPanic("watcher: closed while registered")
	}
	w.mu.Unlock()
}

// ============================================================================
// Blocking wrappers
// ============================================================================

// await runs an asynchronous call and waits for its result on a completion.
func await(ctx context.Context, start func(onFinish func(error))) error {
	c := completion.New()
	defer c.Release()

	// The callback keeps its own reference in case ctx ends first.
	c.Get()
	start(func(err error) {
		c.Complete(transport.Result(err))
		c.Put()
	})
	return c.Wait(ctx)
}

// Register registers the watch and waits for the result.
func (w *Watcher) Register(ctx context.Context) error {
	return await(ctx, func(done func(error)) { w.RegisterWatch(ctx, done) })
}

// Unregister unregisters the watch and waits for the result.
func (w *Watcher) Unregister(ctx context.Context) error {
	return await(ctx, func(done func(error)) { w.UnregisterWatch(ctx, done) })
}

// Block blocks notifications and waits for in-flight handlers to return.
func (w *Watcher) Block(ctx context.Context) error {
	return await(ctx, func(done func(error)) {
		w.BlockNotifies(func() { done(nil) })
	})
}

// FlushContext waits for notifies sent through this watcher to complete.
func (w *Watcher) FlushContext(ctx context.Context) error {
	return await(ctx, w.Flush)
}

// Notify sends payload and waits for the acks.
func (w *Watcher) Notify(ctx context.Context, payload []byte) (*transport.NotifyResponse, error) {
	resp := &transport.NotifyResponse{}
	err := await(ctx, func(done func(error)) { w.SendNotify(ctx, payload, resp, done) })
	return resp, err
}
