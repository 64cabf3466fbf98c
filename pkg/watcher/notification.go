package watcher

import (
	"context"
	"sync"

	"github.com/marmos91/objio/pkg/transport"
)

// Notification is one inbound notify delivered to a Handler.
//
// The handler must call Ack exactly once, either before returning or later
// from another goroutine. Until it is acknowledged the notifier keeps
// waiting and eventually records a timeout for this watcher.
type Notification struct {
	NotifyID   uint64
	Handle     transport.WatchHandle
	NotifierID uint64
	Payload    []byte

	w    *Watcher
	once sync.Once
}

// Ack acknowledges the notification with a reply payload. Calls after the
// first are ignored.
func (n *Notification) Ack(reply []byte) {
	n.once.Do(func() {
		n.w.AcknowledgeNotify(context.Background(), n.NotifyID, n.Handle, reply)
	})
}

// Handler receives notifications for a watched object.
type Handler interface {
	HandleNotify(n *Notification)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(n *Notification)

// HandleNotify calls f(n).
func (f HandlerFunc) HandleNotify(n *Notification) { f(n) }
