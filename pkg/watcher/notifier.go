package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/internal/telemetry"
	"github.com/marmos91/objio/pkg/asyncop"
	"github.com/marmos91/objio/pkg/transport"
)

// DefaultNotifyTimeout bounds how long a notify waits for acks.
const DefaultNotifyTimeout = 5 * time.Second

// Notifier sends notifies on one object and tracks the ones in flight.
type Notifier struct {
	tr      transport.Transport
	queue   WorkQueue
	timeout time.Duration
	metrics *Metrics
	ops     asyncop.Tracker

	mu     sync.RWMutex
	object string
}

// NewNotifier creates a notifier for object. Flush callbacks run on queue.
func NewNotifier(tr transport.Transport, queue WorkQueue, object string, timeout time.Duration, metrics *Metrics) *Notifier {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	return &Notifier{
		tr:      tr,
		queue:   queue,
		timeout: timeout,
		metrics: metrics,
		object:  object,
	}
}

func (n *Notifier) setObject(object string) {
	n.mu.Lock()
	n.object = object
	n.mu.Unlock()
}

// Object returns the notified object.
func (n *Notifier) Object() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.object
}

// Notify sends payload to every watcher of the object. resp, if non-nil,
// receives the acks and timeouts. onFinish gets ErrTimedOut when any
// watcher failed to acknowledge in time.
func (n *Notifier) Notify(ctx context.Context, payload []byte, resp *transport.NotifyResponse, onFinish func(error)) {
	object := n.Object()
	ctx, span := telemetry.StartWatchSpan(ctx, "notify", object)

	n.ops.Start()
	n.tr.Notify(ctx, object, payload, n.timeout, resp, transport.CompleterFunc(func(r int64) {
		err := transport.Error(r)
		telemetry.EndWithError(span, err)

		switch {
		case err == nil:
			n.metrics.ObserveNotify(ResultSuccess)
		case errors.Is(err, transport.ErrTimedOut):
			n.metrics.ObserveNotify(ResultTimeout)
			logger.Warn("Notify timed out waiting for acks", logger.KeyObject, object)
		default:
			n.metrics.ObserveNotify(ResultError)
			logger.Error("Notify failed", logger.KeyObject, object, logger.Err(err))
		}

		if onFinish != nil {
			onFinish(err)
		}
		n.ops.Finish()
	}))
}

// Flush calls onFinish on the work queue once every notify sent before the
// call has completed.
func (n *Notifier) Flush(onFinish func(error)) {
	n.ops.WaitForOps(func() {
		if !n.queue.Queue(func() { onFinish(nil) }) {
			onFinish(transport.ErrShutdown)
		}
	})
}

// Pending returns the number of notifies in flight.
func (n *Notifier) Pending() int { return n.ops.Pending() }
