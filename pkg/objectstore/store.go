// Package objectstore provides the storage interface behind the local
// cluster: a flat namespace of named, variable-length objects.
package objectstore

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrObjectNotFound is returned when a requested object doesn't exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store defines the interface for object storage backends.
//
// Objects are replaced as a whole by PutObject; partial updates are the
// caller's read-modify-write. Keys are the backing object names
// ("<prefix>.<object number>").
type Store interface {
	// PutObject stores data under key, replacing any previous content.
	PutObject(ctx context.Context, key string, data []byte) error

	// GetObject returns the full content of an object.
	// Returns ErrObjectNotFound if the object doesn't exist.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// GetObjectRange returns up to length bytes starting at offset. The
	// result is shorter than length when the object ends first and empty
	// when offset is at or past the end.
	// Returns ErrObjectNotFound if the object doesn't exist.
	GetObjectRange(ctx context.Context, key string, offset, length int64) ([]byte, error)

	// StatObject returns the size of an object.
	// Returns ErrObjectNotFound if the object doesn't exist.
	StatObject(ctx context.Context, key string) (int64, error)

	// DeleteObject removes an object. Returns nil if it doesn't exist.
	DeleteObject(ctx context.Context, key string) error

	// DeleteByPrefix removes every object whose key starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// ListByPrefix returns the sorted keys starting with prefix.
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error

	// HealthCheck verifies the store is accessible and operational.
	HealthCheck(ctx context.Context) error
}

// ClipRange returns data[offset:offset+length] clipped to the slice bounds.
func ClipRange(data []byte, offset, length int64) []byte {
	if offset < 0 || offset >= int64(len(data)) || length <= 0 {
		return []byte{}
	}
	end := min(offset+length, int64(len(data)))
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}
