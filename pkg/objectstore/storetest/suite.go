package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/objectstore"
)

// StoreFactory creates a fresh, empty store for a single test.
type StoreFactory func(t *testing.T) objectstore.Store

// RunConformanceSuite runs every conformance test against stores created by
// factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("Range", func(t *testing.T) { testRange(t, factory) })
	t.Run("Stat", func(t *testing.T) { testStat(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
	t.Run("Prefix", func(t *testing.T) { testPrefix(t, factory) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, factory) })
	t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, factory) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, factory) })
}

func open(t *testing.T, factory StoreFactory) objectstore.Store {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPutGet(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "img.0000000000000000", []byte("hello")))

	data, err := s.GetObject(ctx, "img.0000000000000000")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, s.PutObject(ctx, "empty", nil))
	data, err = s.GetObject(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, s.HealthCheck(ctx))
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	_, err := s.GetObject(ctx, "missing")
	assert.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	_, err = s.GetObjectRange(ctx, "missing", 0, 10)
	assert.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	_, err = s.StatObject(ctx, "missing")
	assert.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}

func testOverwrite(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "obj", []byte("first version")))
	require.NoError(t, s.PutObject(ctx, "obj", []byte("second")))

	data, err := s.GetObject(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func testRange(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "obj", []byte("0123456789")))

	tests := []struct {
		name           string
		offset, length int64
		want           string
	}{
		{"prefix", 0, 4, "0123"},
		{"middle", 3, 4, "3456"},
		{"short at end", 8, 10, "89"},
		{"at end", 10, 5, ""},
		{"past end", 20, 5, ""},
		{"zero length", 2, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.GetObjectRange(ctx, "obj", tt.offset, tt.length)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func testStat(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "obj", make([]byte, 4096)))

	size, err := s.StatObject(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)
}

func testDelete(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "obj", []byte("data")))
	require.NoError(t, s.DeleteObject(ctx, "obj"))

	_, err := s.GetObject(ctx, "obj")
	assert.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	// Deleting again is not an error.
	assert.NoError(t, s.DeleteObject(ctx, "obj"))
}

func testPrefix(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	for _, key := range []string{"b.0000000000000001", "a.0000000000000001", "a.0000000000000000", "c.0"} {
		require.NoError(t, s.PutObject(ctx, key, []byte(key)))
	}

	keys, err := s.ListByPrefix(ctx, "a.")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.0000000000000000", "a.0000000000000001"}, keys)

	require.NoError(t, s.DeleteByPrefix(ctx, "a."))

	keys, err = s.ListByPrefix(ctx, "a.")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.ListByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.0000000000000001", "c.0"}, keys)
}

func testIsolation(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, s.PutObject(ctx, "obj", buf))
	buf[0] = 'X'

	data, err := s.GetObject(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	data[0] = 'Y'
	again, err := s.GetObject(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func testConcurrent(t *testing.T, factory StoreFactory) {
	s := open(t, factory)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("obj.%016x", i)
			assert.NoError(t, s.PutObject(ctx, key, []byte(key)))
			data, err := s.GetObject(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, key, string(data))
		}()
	}
	wg.Wait()

	keys, err := s.ListByPrefix(ctx, "obj.")
	require.NoError(t, err)
	assert.Len(t, keys, n)
}

func testClosed(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.PutObject(ctx, "obj", []byte("x")), objectstore.ErrStoreClosed)
	_, err := s.GetObject(ctx, "obj")
	assert.ErrorIs(t, err, objectstore.ErrStoreClosed)
	assert.Error(t, s.HealthCheck(ctx))
}
