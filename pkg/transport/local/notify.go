package local

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/transport"
)

// pendingNotify tracks one notification waiting for acks.
type pendingNotify struct {
	id        uint64
	remaining map[transport.WatchHandle]*watch
	acks      []transport.NotifyAck
	timeouts  []transport.NotifyTimeout
	resp      *transport.NotifyResponse
	done      transport.Completer
	timer     *time.Timer
}

// finish publishes the collected replies and completes the notify. Every
// watcher that has not acknowledged is reported as timed out.
func (p *pendingNotify) finish() {
	for h, w := range p.remaining {
		p.timeouts = append(p.timeouts, transport.NotifyTimeout{NotifierID: w.client.id, Handle: h})
	}
	p.remaining = nil
	slices.SortFunc(p.timeouts, func(a, b transport.NotifyTimeout) int {
		return cmp.Compare(a.Handle, b.Handle)
	})

	if p.resp != nil {
		p.resp.Acks = p.acks
		p.resp.Timeouts = p.timeouts
	}

	var r int64
	if len(p.timeouts) > 0 {
		r = transport.Result(transport.ErrTimedOut)
	}
	logger.Debug("Notify complete", logger.KeyNotifyID, p.id,
		"acks", len(p.acks), "timeouts", len(p.timeouts))
	p.done.CompleteRequest(r)
}

// finishNotifies completes notifies detached from the cluster table.
func finishNotifies(ps []*pendingNotify) {
	for _, p := range ps {
		go p.finish()
	}
}

func (cl *Cluster) addWatch(ctx context.Context, c *Client, handle transport.WatchHandle,
	object string, wc transport.WatchContext) error {
	if cl.isBlocklisted(c.id) {
		return transport.ErrBlocklisted
	}

	if _, err := cl.store.StatObject(ctx, object); err != nil {
		return storeError(err)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return transport.ErrShutdown
	}
	cl.watches[handle] = &watch{
		handle: handle,
		object: object,
		client: c,
		ctx:    wc,
	}
	logger.Debug("Watch registered", logger.KeyObject, object,
		logger.KeyWatchHandle, uint64(handle), logger.KeyClientID, c.id)
	return nil
}

func (cl *Cluster) removeWatch(c *Client, handle transport.WatchHandle) error {
	cl.mu.Lock()
	w, ok := cl.watches[handle]
	if !ok || w.client != c {
		cl.mu.Unlock()
		return transport.ErrNotConnected
	}
	delete(cl.watches, handle)
	finished := cl.dropWatcherLocked(handle, false)
	fenced := cl.blocklisted[c.id]
	cl.mu.Unlock()

	finishNotifies(finished)
	if fenced {
		return transport.ErrBlocklisted
	}
	return nil
}

// isLive reports whether w is still registered and unbroken.
func (cl *Cluster) isLive(w *watch) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.watches[w.handle] == w && !w.broken
}

func (cl *Cluster) notify(ctx context.Context, c *Client, object string, payload []byte,
	timeout time.Duration, resp *transport.NotifyResponse, done transport.Completer) {
	if cl.isBlocklisted(c.id) {
		done.CompleteRequest(transport.Result(transport.ErrBlocklisted))
		return
	}
	if _, err := cl.store.StatObject(ctx, object); err != nil {
		if !errors.Is(err, objectstore.ErrObjectNotFound) {
			logger.Warn("Notify stat failed", logger.KeyObject, object, logger.Err(err))
		}
		done.CompleteRequest(transport.Result(storeError(err)))
		return
	}

	id := cl.nextNotifyID.Add(1)
	p := &pendingNotify{
		id:        id,
		remaining: make(map[transport.WatchHandle]*watch),
		resp:      resp,
		done:      done,
	}

	cl.mu.Lock()
	for h, w := range cl.watches {
		if w.object == object && !w.broken && !cl.blocklisted[w.client.id] {
			p.remaining[h] = w
		}
	}
	if len(p.remaining) == 0 {
		cl.mu.Unlock()
		p.finish()
		return
	}
	targets := make([]*watch, 0, len(p.remaining))
	for _, w := range p.remaining {
		targets = append(targets, w)
	}
	cl.notifies[id] = p
	p.timer = time.AfterFunc(timeout, func() { cl.expireNotify(id) })
	cl.mu.Unlock()

	logger.Debug("Notify sent", logger.KeyObject, object, logger.KeyNotifyID, id,
		logger.KeyNotifierID, c.id, "watchers", len(targets))

	for _, w := range targets {
		w.client.deliverNotify(w, id, c.id, payload)
	}
}

func (cl *Cluster) ackNotify(notifyID uint64, handle transport.WatchHandle, payload []byte) {
	cl.mu.Lock()
	p, ok := cl.notifies[notifyID]
	if !ok {
		cl.mu.Unlock()
		return
	}
	w, ok := p.remaining[handle]
	if !ok {
		cl.mu.Unlock()
		return
	}
	delete(p.remaining, handle)
	p.acks = append(p.acks, transport.NotifyAck{
		NotifierID: w.client.id,
		Handle:     handle,
		Payload:    append([]byte(nil), payload...),
	})
	complete := len(p.remaining) == 0
	if complete {
		cl.detachLocked(p)
	}
	cl.mu.Unlock()

	if complete {
		go p.finish()
	}
}

func (cl *Cluster) expireNotify(id uint64) {
	cl.mu.Lock()
	p, ok := cl.notifies[id]
	if ok {
		cl.detachLocked(p)
	}
	cl.mu.Unlock()

	if ok {
		logger.Debug("Notify timed out", logger.KeyNotifyID, id, "missing", len(p.remaining))
		p.finish()
	}
}

func (cl *Cluster) detachLocked(p *pendingNotify) {
	delete(cl.notifies, p.id)
	if p.timer != nil {
		p.timer.Stop()
	}
}

// dropWatcherLocked removes handle from every pending notify. With timedOut
// the watcher is reported as a timeout; otherwise it is forgotten. Returns
// the notifies left with nothing to wait for.
func (cl *Cluster) dropWatcherLocked(handle transport.WatchHandle, timedOut bool) []*pendingNotify {
	var finished []*pendingNotify
	for _, p := range cl.notifies {
		w, ok := p.remaining[handle]
		if !ok {
			continue
		}
		delete(p.remaining, handle)
		if timedOut {
			p.timeouts = append(p.timeouts, transport.NotifyTimeout{NotifierID: w.client.id, Handle: handle})
		}
		if len(p.remaining) == 0 {
			finished = append(finished, p)
		}
	}
	for _, p := range finished {
		cl.detachLocked(p)
	}
	return finished
}
