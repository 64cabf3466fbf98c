// Package transport defines the contract between the client data path and
// the cluster it talks to.
//
// Every call is asynchronous: it returns once the work is queued and reports
// the outcome by invoking the supplied Completer exactly once, from an
// arbitrary goroutine. Watch, Unwatch, WatchFlush and Notify never invoke
// the completer on the calling goroutine, so callers may hold a lock that
// the completer also takes. Results follow the convention in errors.go.
package transport

import (
	"context"
	"time"
)

// Completer receives the outcome of one asynchronous operation.
type Completer interface {
	CompleteRequest(r int64)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(r int64)

// CompleteRequest calls f(r).
func (f CompleterFunc) CompleteRequest(r int64) { f(r) }

// Op is the kind of object operation carried by an ObjectRequest.
type Op int

const (
	OpRead Op = iota
	OpWrite
	// OpZero zeroes the listed ranges; the object keeps its size.
	OpZero
	// OpRemove deletes the whole object. Segments are ignored.
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpZero:
		return "zero"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Segment is one byte range inside an object.
//
// For writes Data holds Length bytes to store. For reads the caller
// supplies Data with len(Data) == Length and the transport fills it;
// bytes past the end of the stored object read as zero.
type Segment struct {
	Offset uint32
	Length uint32
	Data   []byte
}

// ObjectRequest is a single sub-request against one object.
type ObjectRequest struct {
	Op       Op
	Object   string
	Segments []Segment
}

// Length is the total number of bytes addressed by the request.
func (r *ObjectRequest) Length() int64 {
	var n int64
	for _, s := range r.Segments {
		n += int64(s.Length)
	}
	return n
}

// WatchHandle identifies one watch registration (a "cookie").
type WatchHandle uint64

// WatchContext receives events for a registered watch. Both methods are
// invoked from transport goroutines and must not block on the transport.
type WatchContext interface {
	// HandleNotify delivers a notification. The receiver must eventually
	// acknowledge notifyID through Transport.NotifyAck.
	HandleNotify(notifyID uint64, handle WatchHandle, notifierID uint64, payload []byte)

	// HandleError reports that the watch session behind handle broke.
	HandleError(handle WatchHandle, err error)
}

// NotifyAck is one watcher's reply to a notification.
type NotifyAck struct {
	NotifierID uint64
	Handle     WatchHandle
	Payload    []byte
}

// NotifyTimeout names a watcher that did not acknowledge in time.
type NotifyTimeout struct {
	NotifierID uint64
	Handle     WatchHandle
}

// NotifyResponse collects the outcome of a notification.
type NotifyResponse struct {
	Acks     []NotifyAck
	Timeouts []NotifyTimeout
}

// Transport is the client's view of the cluster.
type Transport interface {
	// ClientID identifies this client; it is the notifier id peers see.
	ClientID() uint64

	// Dispatch issues one object request. For reads the result is the
	// number of bytes placed in the segments; for writes the number of
	// bytes written; zero and remove complete with 0.
	Dispatch(ctx context.Context, req *ObjectRequest, c Completer)

	// Flush completes once every request dispatched before it has completed.
	Flush(ctx context.Context, c Completer)

	// Watch registers wc on object. The handle is valid immediately; c
	// reports whether the registration was accepted.
	Watch(ctx context.Context, object string, wc WatchContext, c Completer) WatchHandle

	// Unwatch removes a registration.
	Unwatch(ctx context.Context, handle WatchHandle, c Completer)

	// WatchFlush completes once every notify and error callback queued for
	// this client's watches has been delivered.
	WatchFlush(ctx context.Context, c Completer)

	// Notify sends payload to every watcher of object and collects acks
	// into resp until all watchers replied or timeout expired. The result
	// is -ETIMEDOUT if any watcher timed out.
	Notify(ctx context.Context, object string, payload []byte, timeout time.Duration, resp *NotifyResponse, c Completer)

	// NotifyAck acknowledges a notification received on handle.
	NotifyAck(ctx context.Context, object string, notifyID uint64, handle WatchHandle, payload []byte)
}
