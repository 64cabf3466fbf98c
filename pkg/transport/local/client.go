package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/transport"
	"github.com/marmos91/objio/pkg/workqueue"
)

// callbackStopTimeout bounds how long Close waits for queued watch
// callbacks to be delivered.
const callbackStopTimeout = 5 * time.Second

// Client is one session against a Cluster. It implements transport.Transport.
type Client struct {
	cluster  *Cluster
	id       uint64
	instance uuid.UUID

	// callbacks delivers notify and error callbacks for this client's
	// watches, one at a time and in order.
	callbacks *workqueue.Queue

	mu       sync.Mutex
	nextOp   uint64
	inflight map[uint64]chan struct{}
	closed   bool
}

var _ transport.Transport = (*Client)(nil)

func newClient(cl *Cluster, id uint64) *Client {
	q := workqueue.New(fmt.Sprintf("client.%d", id), workqueue.Config{
		Workers:   1,
		QueueSize: cl.cfg.CallbackQueueSize,
	})
	q.Start()

	return &Client{
		cluster:   cl,
		id:        id,
		instance:  uuid.New(),
		callbacks: q,
		inflight:  make(map[uint64]chan struct{}),
	}
}

// ClientID returns the session's numeric identity.
func (c *Client) ClientID() uint64 { return c.id }

// Instance returns the session's unique instance id.
func (c *Client) Instance() uuid.UUID { return c.instance }

// Close ends the session: the client's watches are removed and pending
// callbacks are delivered before Close returns.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	cl := c.cluster
	cl.mu.Lock()
	var finished []*pendingNotify
	for h, w := range cl.watches {
		if w.client == c {
			delete(cl.watches, h)
			finished = append(finished, cl.dropWatcherLocked(h, false)...)
		}
	}
	delete(cl.clients, c.id)
	cl.mu.Unlock()

	finishNotifies(finished)
	c.callbacks.Stop(callbackStopTimeout)

	logger.Info("Client disconnected", logger.KeyClientID, c.id)
}

func completeAsync(done transport.Completer, err error) {
	go done.CompleteRequest(transport.Result(err))
}

// ============================================================================
// Object I/O
// ============================================================================

// startOp records an in-flight request. The returned channel is closed by
// finishOp.
func (c *Client) startOp() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, false
	}
	c.nextOp++
	c.inflight[c.nextOp] = make(chan struct{})
	return c.nextOp, true
}

func (c *Client) finishOp(op uint64) {
	c.mu.Lock()
	ch := c.inflight[op]
	delete(c.inflight, op)
	c.mu.Unlock()
	close(ch)
}

// Dispatch executes req asynchronously and reports the result to done.
func (c *Client) Dispatch(ctx context.Context, req *transport.ObjectRequest, done transport.Completer) {
	if c.cluster.isBlocklisted(c.id) {
		completeAsync(done, transport.ErrBlocklisted)
		return
	}
	op, ok := c.startOp()
	if !ok {
		completeAsync(done, transport.ErrShutdown)
		return
	}

	go func() {
		defer c.finishOp(op)

		if err := c.cluster.sem.Acquire(ctx, 1); err != nil {
			done.CompleteRequest(transport.Result(err))
			return
		}
		r := c.cluster.execute(ctx, req)
		c.cluster.sem.Release(1)

		logger.Debug("Object request complete",
			logger.KeyOp, req.Op.String(),
			logger.KeyObject, req.Object,
			logger.KeyResult, r)
		done.CompleteRequest(r)
	}()
}

// Flush completes once every request dispatched before the call has
// completed.
func (c *Client) Flush(ctx context.Context, done transport.Completer) {
	c.mu.Lock()
	pending := make([]chan struct{}, 0, len(c.inflight))
	for _, ch := range c.inflight {
		pending = append(pending, ch)
	}
	c.mu.Unlock()

	go func() {
		for _, ch := range pending {
			select {
			case <-ch:
			case <-ctx.Done():
				done.CompleteRequest(transport.Result(ctx.Err()))
				return
			}
		}
		done.CompleteRequest(0)
	}()
}

// ============================================================================
// Watch / notify
// ============================================================================

// Watch registers wc on object. The handle is allocated before the
// registration lands; done reports ErrNotFound if the object is missing and
// ErrBlocklisted if the client is fenced.
func (c *Client) Watch(ctx context.Context, object string, wc transport.WatchContext, done transport.Completer) transport.WatchHandle {
	handle := transport.WatchHandle(c.cluster.nextHandle.Add(1))

	go func() {
		err := c.cluster.addWatch(ctx, c, handle, object, wc)
		if err != nil {
			logger.Debug("Watch rejected", logger.KeyObject, object,
				logger.KeyWatchHandle, uint64(handle), logger.Err(err))
		}
		done.CompleteRequest(transport.Result(err))
	}()
	return handle
}

// Unwatch removes a registration. Unknown handles fail with
// ErrNotConnected; a fenced client's watch is removed but the call still
// fails with ErrBlocklisted.
func (c *Client) Unwatch(_ context.Context, handle transport.WatchHandle, done transport.Completer) {
	go func() {
		done.CompleteRequest(transport.Result(c.cluster.removeWatch(c, handle)))
	}()
}

// WatchFlush completes after every callback queued for this client so far
// has been delivered.
func (c *Client) WatchFlush(_ context.Context, done transport.Completer) {
	if !c.callbacks.Queue(func() { done.CompleteRequest(0) }) {
		completeAsync(done, transport.ErrShutdown)
	}
}

// Notify fans payload out to every live watch on object.
func (c *Client) Notify(ctx context.Context, object string, payload []byte, timeout time.Duration,
	resp *transport.NotifyResponse, done transport.Completer) {
	go c.cluster.notify(ctx, c, object, payload, timeout, resp, done)
}

// NotifyAck acknowledges notifyID on behalf of handle.
func (c *Client) NotifyAck(_ context.Context, _ string, notifyID uint64, handle transport.WatchHandle, payload []byte) {
	c.cluster.ackNotify(notifyID, handle, payload)
}

func (c *Client) deliverNotify(w *watch, notifyID, notifierID uint64, payload []byte) {
	c.callbacks.Queue(func() {
		if !c.cluster.isLive(w) {
			return
		}
		w.ctx.HandleNotify(notifyID, w.handle, notifierID, payload)
	})
}

func (c *Client) deliverError(w *watch, err error) {
	c.callbacks.Queue(func() {
		w.ctx.HandleError(w.handle, err)
	})
}
