// Package local implements transport.Transport against an in-process
// cluster backed by an objectstore.Store.
//
// A Cluster plays the role of the remote side: it stores object data, keeps
// the table of watches and routes notifications between clients. Each
// Client connected to it is one transport session with its own identity and
// its own callback delivery goroutine, so notify and error callbacks for one
// client are delivered in order and never concurrently with each other.
//
// The cluster also exposes fault injection hooks (BreakWatch, Blocklist,
// RemoveObject) used by tests and the CLI to exercise the watch recovery
// path.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/transport"
)

// objectLockStripes is the number of lock stripes guarding object
// read-modify-write cycles.
const objectLockStripes = 64

// Config configures a Cluster.
type Config struct {
	// MaxInFlight bounds the number of object requests executing at once
	// across all clients. Zero means DefaultMaxInFlight.
	MaxInFlight int64

	// CallbackQueueSize is the per-client channel capacity for watch
	// callbacks. Callbacks beyond it wait in order; delivery never blocks,
	// so a notify handler may unregister its own watch.
	CallbackQueueSize int
}

// DefaultMaxInFlight is the default cluster-wide dispatch limit.
const DefaultMaxInFlight = 64

// Cluster is an in-process stand-in for a storage cluster.
type Cluster struct {
	store objectstore.Store
	cfg   Config
	sem   *semaphore.Weighted
	locks [objectLockStripes]sync.RWMutex

	nextClientID atomic.Uint64
	nextHandle   atomic.Uint64
	nextNotifyID atomic.Uint64

	mu          sync.Mutex
	clients     map[uint64]*Client
	watches     map[transport.WatchHandle]*watch
	notifies    map[uint64]*pendingNotify
	blocklisted map[uint64]bool
	closed      bool
}

// watch is one registration on an object.
type watch struct {
	handle transport.WatchHandle
	object string
	client *Client
	ctx    transport.WatchContext
	broken bool
}

// NewCluster creates a cluster storing object data in store. The cluster
// takes ownership of store and closes it on Close.
func NewCluster(store objectstore.Store, cfg Config) *Cluster {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}

	return &Cluster{
		store:       store,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(cfg.MaxInFlight),
		clients:     make(map[uint64]*Client),
		watches:     make(map[transport.WatchHandle]*watch),
		notifies:    make(map[uint64]*pendingNotify),
		blocklisted: make(map[uint64]bool),
	}
}

// Store returns the backing object store.
func (cl *Cluster) Store() objectstore.Store {
	return cl.store
}

// Connect opens a new client session.
func (cl *Cluster) Connect() (*Client, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil, transport.ErrShutdown
	}

	c := newClient(cl, cl.nextClientID.Add(1))
	cl.clients[c.id] = c

	logger.Info("Client connected", logger.KeyClientID, c.id, "instance", c.instance.String())
	return c, nil
}

// Close disconnects every client and closes the object store.
func (cl *Cluster) Close() error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return nil
	}
	cl.closed = true
	clients := make([]*Client, 0, len(cl.clients))
	for _, c := range cl.clients {
		clients = append(clients, c)
	}
	cl.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	return cl.store.Close()
}

func (cl *Cluster) objectLock(object string) *sync.RWMutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(object))
	return &cl.locks[h.Sum32()%objectLockStripes]
}

func (cl *Cluster) isBlocklisted(clientID uint64) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.blocklisted[clientID]
}

// ============================================================================
// Fault injection
// ============================================================================

// BreakWatch simulates the loss of the session behind handle: the watch
// stops receiving notifications and its owner gets HandleError(err).
func (cl *Cluster) BreakWatch(handle transport.WatchHandle, err error) error {
	cl.mu.Lock()
	w, ok := cl.watches[handle]
	if !ok {
		cl.mu.Unlock()
		return fmt.Errorf("break watch %d: %w", handle, transport.ErrNotConnected)
	}
	finished := cl.breakLocked(w)
	cl.mu.Unlock()

	logger.Warn("Injected watch error", logger.KeyWatchHandle, uint64(handle), logger.Err(err))

	finishNotifies(finished)
	w.client.deliverError(w, err)
	return nil
}

// Blocklist fences a client: its watches break with ErrBlocklisted and all
// further requests from it fail with ErrBlocklisted.
func (cl *Cluster) Blocklist(clientID uint64) {
	cl.mu.Lock()
	cl.blocklisted[clientID] = true
	var broken []*watch
	var finished []*pendingNotify
	for _, w := range cl.watches {
		if w.client.id == clientID && !w.broken {
			finished = append(finished, cl.breakLocked(w)...)
			broken = append(broken, w)
		}
	}
	cl.mu.Unlock()

	logger.Warn("Client blocklisted", logger.KeyClientID, clientID, "watches", len(broken))

	finishNotifies(finished)
	for _, w := range broken {
		w.client.deliverError(w, transport.ErrBlocklisted)
	}
}

// Unblocklist lifts a fence set by Blocklist.
func (cl *Cluster) Unblocklist(clientID uint64) {
	cl.mu.Lock()
	delete(cl.blocklisted, clientID)
	cl.mu.Unlock()
}

// RemoveObject deletes an object out from under its watchers. Every watch
// on it breaks with ErrNotConnected; re-registering then fails with
// ErrNotFound.
func (cl *Cluster) RemoveObject(ctx context.Context, object string) error {
	lock := cl.objectLock(object)
	lock.Lock()
	err := cl.store.DeleteObject(ctx, object)
	lock.Unlock()
	if err != nil {
		return fmt.Errorf("remove object %s: %w", object, err)
	}

	cl.mu.Lock()
	var broken []*watch
	var finished []*pendingNotify
	for _, w := range cl.watches {
		if w.object == object && !w.broken {
			finished = append(finished, cl.breakLocked(w)...)
			broken = append(broken, w)
		}
	}
	cl.mu.Unlock()

	finishNotifies(finished)
	for _, w := range broken {
		w.client.deliverError(w, transport.ErrNotConnected)
	}
	return nil
}

// WatchCount returns the number of live (unbroken) watches on object.
func (cl *Cluster) WatchCount(object string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n := 0
	for _, w := range cl.watches {
		if w.object == object && !w.broken {
			n++
		}
	}
	return n
}

// breakLocked marks w broken and drops it from every pending notify.
// Returns the notifies that became complete as a result.
func (cl *Cluster) breakLocked(w *watch) []*pendingNotify {
	w.broken = true
	return cl.dropWatcherLocked(w.handle, true)
}
