// Package badger provides a BadgerDB-backed object store for durable
// single-node clusters.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/objectstore"
)

// keyPrefix namespaces object keys inside the database.
const keyPrefix = "obj:"

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory (tests, ephemeral clusters).
	InMemory bool

	// SyncWrites fsyncs every write before it is acknowledged.
	SyncWrites bool
}

// Store is a BadgerDB implementation of objectstore.Store.
type Store struct {
	db     *badgerdb.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) a Badger store.
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = ""
	} else if path == "" {
		return nil, errors.New("badger object store: path is required")
	}

	opts := badgerdb.DefaultOptions(path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger object store: %w", err)
	}

	logger.Info("Opened badger object store", logger.KeyPath, path, "in_memory", cfg.InMemory)
	return &Store{db: db}, nil
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return objectstore.ErrStoreClosed
	}
	return nil
}

// PutObject stores data under key.
func (s *Store) PutObject(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(dbKey(key), data)
	})
}

// GetObject returns the full content of an object.
func (s *Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, objectstore.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get object: %w", err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// GetObjectRange returns a byte range of an object.
func (s *Store) GetObjectRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = objectstore.ClipRange(val, offset, length)
			return nil
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, objectstore.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get object range: %w", err)
	}
	return out, nil
}

// StatObject returns the object size.
func (s *Store) StatObject(ctx context.Context, key string) (int64, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	var size int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return 0, objectstore.ErrObjectNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("badger stat object: %w", err)
	}
	return size, nil
}

// DeleteObject removes an object.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(dbKey(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// DeleteByPrefix removes all objects with a given prefix.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	keys, err := s.ListByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(dbKey(key)); err != nil {
			return fmt.Errorf("badger delete by prefix: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger delete by prefix: %w", err)
	}
	return nil
}

// ListByPrefix lists all object keys with a given prefix.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = dbKey(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list objects: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// HealthCheck verifies the database can serve a read transaction.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

var _ objectstore.Store = (*Store)(nil)

// badgerLogger routes Badger's internal logging into the process logger.
// Badger is chatty at info level, so info and debug both map to Debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}
