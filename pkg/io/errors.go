package io

import (
	"fmt"

	"github.com/marmos91/objio/pkg/transport"
)

// ErrImageClosed is returned for requests submitted after Close.
var ErrImageClosed = fmt.Errorf("image is closed: %w", transport.ErrShutdown)

// RequestError wraps a failed image request with the context needed to
// diagnose it, while keeping errors.Is matches on the underlying errno.
//
//	err := &RequestError{Op: "read", Image: "vm1", Offset: 0, Length: 4096, Err: transport.ErrIO}
//	errors.Is(err, transport.ErrIO) // true
type RequestError struct {
	// Op is the request kind: "read", "write", "discard" or "flush".
	Op string

	// Image is the image name.
	Image string

	// Offset and Length describe the first image extent of the request.
	Offset uint64
	Length uint64

	// Err is the underlying error.
	Err error
}

func (e *RequestError) Error() string {
	if e.Op == opFlush {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Image, e.Err)
	}
	return fmt.Sprintf("%s %s [%d~%d]: %v", e.Op, e.Image, e.Offset, e.Length, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}
