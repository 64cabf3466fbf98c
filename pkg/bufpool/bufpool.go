// Package bufpool provides tiered reusable buffers for object sub-requests.
//
// Striped reads stage every object's data in a bounce buffer before it is
// scattered into the caller's destination. Those buffers live exactly as
// long as one image request, so they are drawn from three size classes
// matching common stripe units and object sizes:
//
//   - Small (64KiB): stripe-unit sized fragments
//   - Medium (1MiB): partial objects
//   - Large (4MiB): whole objects at the default object size
//
// Requests above the large class are allocated directly and never pooled.
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default size classes.
const (
	DefaultSmallSize  = 64 << 10
	DefaultMediumSize = 1 << 20
	DefaultLargeSize  = 4 << 20
)

// Pool hands out byte slices from three size classes.
type Pool struct {
	classes [3]class
}

type class struct {
	size int
	pool sync.Pool
}

// Config sets the size classes. Zero values take the defaults; classes must
// be ascending.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default size classes.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a pool. A nil cfg uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{}
	for i, size := range []int{c.SmallSize, c.MediumSize, c.LargeSize} {
		p.classes[i].size = size
		p.classes[i].pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Get returns a slice of length size. Its capacity is the size class, or
// exactly size when no class fits. Contents are not zeroed.
func (p *Pool) Get(size int) []byte {
	for i := range p.classes {
		c := &p.classes[i]
		if size <= c.size {
			buf := *c.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its size class. Slices whose capacity matches no
// class, including nil, are dropped.
func (p *Pool) Put(buf []byte) {
	for i := range p.classes {
		c := &p.classes[i]
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

var globalPool = NewPool(nil)

// Get returns a buffer from the shared pool.
func Get(size int) []byte { return globalPool.Get(size) }

// Put returns a buffer to the shared pool.
func Put(buf []byte) { globalPool.Put(buf) }
