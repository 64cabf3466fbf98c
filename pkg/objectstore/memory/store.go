// Package memory provides an in-memory object store, used by tests and the
// default local cluster.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/objio/pkg/objectstore"
)

// Store is an in-memory implementation of objectstore.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

// PutObject stores a copy of data.
func (s *Store) PutObject(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[key] = copied
	return nil
}

// GetObject returns a copy of the object.
func (s *Store) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, objectstore.ErrStoreClosed
	}

	data, ok := s.objects[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// GetObjectRange returns a copy of a byte range of the object.
func (s *Store) GetObjectRange(_ context.Context, key string, offset, length int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, objectstore.ErrStoreClosed
	}

	data, ok := s.objects[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return objectstore.ClipRange(data, offset, length), nil
}

// StatObject returns the object size.
func (s *Store) StatObject(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, objectstore.ErrStoreClosed
	}

	data, ok := s.objects[key]
	if !ok {
		return 0, objectstore.ErrObjectNotFound
	}
	return int64(len(data)), nil
}

// DeleteObject removes an object.
func (s *Store) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	delete(s.objects, key)
	return nil
}

// DeleteByPrefix removes all objects with a given prefix.
func (s *Store) DeleteByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

// ListByPrefix lists all object keys with a given prefix.
func (s *Store) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, objectstore.ErrStoreClosed
	}

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the store as closed and drops its contents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

// HealthCheck reports whether the store is open.
func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}
	return nil
}

// ObjectCount returns the number of objects stored (for testing).
func (s *Store) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ objectstore.Store = (*Store)(nil)
