package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/transport"
	"github.com/marmos91/objio/pkg/workqueue"
)

const testTimeout = 5 * time.Second

type watchCall struct {
	object string
	wc     transport.WatchContext
	handle transport.WatchHandle
	done   transport.Completer
}

type handleCall struct {
	handle transport.WatchHandle
	done   transport.Completer
}

type notifyCall struct {
	object  string
	payload []byte
	resp    *transport.NotifyResponse
	done    transport.Completer
}

type ackCall struct {
	object   string
	notifyID uint64
	handle   transport.WatchHandle
	payload  []byte
}

// scriptedTransport captures every watch-side call so tests decide when and
// how each one completes.
type scriptedTransport struct {
	mu         sync.Mutex
	nextHandle transport.WatchHandle
	acks       []ackCall

	watches  chan watchCall
	unwatch  chan handleCall
	flushes  chan transport.Completer
	notifies chan notifyCall
}

var _ transport.Transport = (*scriptedTransport)(nil)

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		watches:  make(chan watchCall, 16),
		unwatch:  make(chan handleCall, 16),
		flushes:  make(chan transport.Completer, 16),
		notifies: make(chan notifyCall, 16),
	}
}

func (f *scriptedTransport) ClientID() uint64 { return 7 }

func (f *scriptedTransport) Dispatch(_ context.Context, _ *transport.ObjectRequest, c transport.Completer) {
	go c.CompleteRequest(0)
}

func (f *scriptedTransport) Flush(_ context.Context, c transport.Completer) {
	go c.CompleteRequest(0)
}

func (f *scriptedTransport) Watch(_ context.Context, object string, wc transport.WatchContext, c transport.Completer) transport.WatchHandle {
	f.mu.Lock()
	f.nextHandle++
	h := f.nextHandle
	f.mu.Unlock()

	f.watches <- watchCall{object: object, wc: wc, handle: h, done: c}
	return h
}

func (f *scriptedTransport) Unwatch(_ context.Context, handle transport.WatchHandle, c transport.Completer) {
	f.unwatch <- handleCall{handle: handle, done: c}
}

func (f *scriptedTransport) WatchFlush(_ context.Context, c transport.Completer) {
	f.flushes <- c
}

func (f *scriptedTransport) Notify(_ context.Context, object string, payload []byte, _ time.Duration,
	resp *transport.NotifyResponse, c transport.Completer) {
	f.notifies <- notifyCall{object: object, payload: payload, resp: resp, done: c}
}

func (f *scriptedTransport) NotifyAck(_ context.Context, object string, notifyID uint64, handle transport.WatchHandle, payload []byte) {
	f.mu.Lock()
	f.acks = append(f.acks, ackCall{object, notifyID, handle, payload})
	f.mu.Unlock()
}

func (f *scriptedTransport) ackCalls() []ackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ackCall(nil), f.acks...)
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func (f *scriptedTransport) nextWatch(t *testing.T) watchCall {
	t.Helper()
	return receive(t, f.watches, "watch")
}

func (f *scriptedTransport) nextUnwatch(t *testing.T) handleCall {
	t.Helper()
	return receive(t, f.unwatch, "unwatch")
}

func (f *scriptedTransport) nextFlush(t *testing.T) transport.Completer {
	t.Helper()
	return receive(t, f.flushes, "watch flush")
}

func (f *scriptedTransport) nextNotify(t *testing.T) notifyCall {
	t.Helper()
	return receive(t, f.notifies, "notify")
}

// expectIdle fails if the watcher issues an unwatch or watch within d.
func (f *scriptedTransport) expectIdle(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-f.watches:
		t.Fatalf("unexpected watch on %q", c.object)
	case c := <-f.unwatch:
		t.Fatalf("unexpected unwatch of handle %d", c.handle)
	case <-time.After(d):
	}
}

func newTestQueue(t *testing.T) *workqueue.Queue {
	t.Helper()
	q := workqueue.New("watcher-test", workqueue.Config{Workers: 1, QueueSize: 64})
	q.Start()
	t.Cleanup(func() { q.Stop(time.Second) })
	return q
}

// errResult returns a callback and a function waiting for its error.
func errResult(t *testing.T) (func(error), func() error) {
	t.Helper()
	ch := make(chan error, 1)
	return func(err error) { ch <- err }, func() error {
		t.Helper()
		return receive(t, ch, "callback")
	}
}

// registered returns a watcher whose first registration has been acked.
func registered(t *testing.T, f *scriptedTransport, cfg Config, h Handler) (*Watcher, transport.WatchHandle) {
	t.Helper()
	w := New(f, newTestQueue(t), "img.header", h, cfg, nil)

	done, wait := errResult(t)
	w.RegisterWatch(context.Background(), done)
	call := f.nextWatch(t)
	call.done.CompleteRequest(0)
	require.NoError(t, wait())
	require.Equal(t, StateRegistered, w.State())
	return w, call.handle
}
