package io

import (
	"fmt"
	"sync"

	"github.com/marmos91/objio/pkg/transport"
)

// ReadDestination receives the bytes of a read.
//
// Reserve is called once before dispatch with the total request length and
// may reject a destination that is too small. PutAt is called during
// assembly, after every sub-request succeeded, with disjoint ranges.
type ReadDestination interface {
	Reserve(n uint64) error
	PutAt(p []byte, off uint64)
}

// linear is a caller-owned contiguous buffer.
type linear struct {
	buf []byte
}

// LinearBuffer reads into buf, which must hold the whole request.
func LinearBuffer(buf []byte) ReadDestination {
	return &linear{buf: buf}
}

func (d *linear) Reserve(n uint64) error {
	if uint64(len(d.buf)) < n {
		return fmt.Errorf("buffer of %d bytes for %d byte read: %w", len(d.buf), n, transport.ErrInvalid)
	}
	return nil
}

func (d *linear) PutAt(p []byte, off uint64) {
	copy(d.buf[off:], p)
}

// detachable forwards to dst until detach is called. Blocking reads use it
// so a read abandoned by its context never writes the caller's buffer
// after returning.
type detachable struct {
	mu       sync.Mutex
	dst      ReadDestination
	detached bool
}

func (d *detachable) Reserve(n uint64) error {
	return d.dst.Reserve(n)
}

func (d *detachable) PutAt(p []byte, off uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return
	}
	d.dst.PutAt(p, off)
}

// detach waits for any PutAt in progress and drops all later ones.
func (d *detachable) detach() {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()
}

// vector scatters the read across several caller-owned buffers.
type vector struct {
	iov [][]byte
}

// VectorBuffer reads into iov in order, like readv(2).
func VectorBuffer(iov [][]byte) ReadDestination {
	return &vector{iov: iov}
}

func (d *vector) Reserve(n uint64) error {
	var total uint64
	for _, b := range d.iov {
		total += uint64(len(b))
	}
	if total < n {
		return fmt.Errorf("iovec of %d bytes for %d byte read: %w", total, n, transport.ErrInvalid)
	}
	return nil
}

func (d *vector) PutAt(p []byte, off uint64) {
	for _, b := range d.iov {
		if len(p) == 0 {
			return
		}
		size := uint64(len(b))
		if off >= size {
			off -= size
			continue
		}
		n := copy(b[off:], p)
		p = p[n:]
		off = 0
	}
}

// GrowableBuffer is a destination that sizes itself to the request.
type GrowableBuffer struct {
	buf []byte
}

// Reserve grows the buffer to n bytes.
func (d *GrowableBuffer) Reserve(n uint64) error {
	if uint64(cap(d.buf)) < n {
		d.buf = make([]byte, n)
	}
	d.buf = d.buf[:n]
	return nil
}

// PutAt implements ReadDestination.
func (d *GrowableBuffer) PutAt(p []byte, off uint64) {
	copy(d.buf[off:], p)
}

// Bytes returns the data read so far.
func (d *GrowableBuffer) Bytes() []byte { return d.buf }

// Len returns the number of bytes held.
func (d *GrowableBuffer) Len() int { return len(d.buf) }
