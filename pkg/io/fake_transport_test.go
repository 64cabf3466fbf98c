package io

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/objio/pkg/transport"
)

// fakeTransport records dispatched requests and completes them with a
// scripted result, synchronously unless async is set.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*transport.ObjectRequest
	flushes  int
	result   func(req *transport.ObjectRequest) int64
	async    bool
	delay    time.Duration
}

var _ transport.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) ClientID() uint64 { return 42 }

func (f *fakeTransport) Dispatch(_ context.Context, req *transport.ObjectRequest, c transport.Completer) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		go func() {
			time.Sleep(f.delay)
			c.CompleteRequest(f.resultOf(req))
		}()
		return
	}

	r := f.resultOf(req)
	if f.async {
		go c.CompleteRequest(r)
		return
	}
	c.CompleteRequest(r)
}

func (f *fakeTransport) resultOf(req *transport.ObjectRequest) int64 {
	if f.result != nil {
		return f.result(req)
	}
	return req.Length()
}

func (f *fakeTransport) Flush(_ context.Context, c transport.Completer) {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
	c.CompleteRequest(0)
}

func (f *fakeTransport) Watch(context.Context, string, transport.WatchContext, transport.Completer) transport.WatchHandle {
	return 0
}

func (f *fakeTransport) Unwatch(context.Context, transport.WatchHandle, transport.Completer) {}

func (f *fakeTransport) WatchFlush(context.Context, transport.Completer) {}

func (f *fakeTransport) Notify(context.Context, string, []byte, time.Duration, *transport.NotifyResponse, transport.Completer) {
}

func (f *fakeTransport) NotifyAck(context.Context, string, uint64, transport.WatchHandle, []byte) {}

func (f *fakeTransport) dispatched() []*transport.ObjectRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transport.ObjectRequest(nil), f.requests...)
}
