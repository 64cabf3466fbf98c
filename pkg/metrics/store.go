// Package metrics instruments object store backends with Prometheus
// collectors.
//
// Any objectstore.Store can be wrapped; the decorator records the operation
// count and latency per call and the bytes moved in each direction:
//
//	store = metrics.InstrumentStore(store, "s3", registry)
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/objio/pkg/objectstore"
)

// Operation label values.
const (
	OpPut            = "put"
	OpGet            = "get"
	OpGetRange       = "get_range"
	OpStat           = "stat"
	OpDelete         = "delete"
	OpDeleteByPrefix = "delete_by_prefix"
	OpList           = "list"
	OpHealthCheck    = "health_check"
)

// Status label values. A missing object is reported separately because
// reads of holes are routine, not failures.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// StoreMetrics holds the collectors of one instrumented store.
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewStoreMetrics creates the collectors and registers them with registry.
// A nil registry creates unregistered collectors.
func NewStoreMetrics(storeType string, registry prometheus.Registerer) *StoreMetrics {
	factory := promauto.With(registry)
	labels := prometheus.Labels{"store": storeType}

	return &StoreMetrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "objio_store_operations_total",
				Help:        "Total number of object store operations by operation and status",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "objio_store_operation_duration_milliseconds",
				Help:        "Duration of object store operations in milliseconds",
				ConstLabels: labels,
				Buckets: []float64{
					0.1,  // in-memory
					1,    // local disk
					10,   // small remote objects
					50,   //
					100,  //
					500,  // whole objects over the network
					1000, //
					5000, // slow or retried requests
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "objio_store_bytes_total",
				Help:        "Total bytes moved to and from the object store",
				ConstLabels: labels,
			},
			[]string{"direction"},
		),
	}
}

// observe records one call. Nil-safe.
func (m *StoreMetrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	switch {
	case errors.Is(err, objectstore.ErrObjectNotFound):
		status = StatusNotFound
	case err != nil:
		status = StatusError
	}
	m.operationsTotal.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (m *StoreMetrics) bytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// instrumentedStore decorates a Store with metrics.
type instrumentedStore struct {
	objectstore.Store
	m *StoreMetrics
}

var _ objectstore.Store = (*instrumentedStore)(nil)

// InstrumentStore wraps store so that every call is recorded in registry.
func InstrumentStore(store objectstore.Store, storeType string, registry prometheus.Registerer) objectstore.Store {
	return &instrumentedStore{Store: store, m: NewStoreMetrics(storeType, registry)}
}

func (s *instrumentedStore) PutObject(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.Store.PutObject(ctx, key, data)
	s.m.observe(OpPut, start, err)
	if err == nil {
		s.m.bytes("write", len(data))
	}
	return err
}

func (s *instrumentedStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.Store.GetObject(ctx, key)
	s.m.observe(OpGet, start, err)
	s.m.bytes("read", len(data))
	return data, err
}

func (s *instrumentedStore) GetObjectRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	start := time.Now()
	data, err := s.Store.GetObjectRange(ctx, key, offset, length)
	s.m.observe(OpGetRange, start, err)
	s.m.bytes("read", len(data))
	return data, err
}

func (s *instrumentedStore) StatObject(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	size, err := s.Store.StatObject(ctx, key)
	s.m.observe(OpStat, start, err)
	return size, err
}

func (s *instrumentedStore) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Store.DeleteObject(ctx, key)
	s.m.observe(OpDelete, start, err)
	return err
}

func (s *instrumentedStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	start := time.Now()
	err := s.Store.DeleteByPrefix(ctx, prefix)
	s.m.observe(OpDeleteByPrefix, start, err)
	return err
}

func (s *instrumentedStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.Store.ListByPrefix(ctx, prefix)
	s.m.observe(OpList, start, err)
	return keys, err
}

func (s *instrumentedStore) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := s.Store.HealthCheck(ctx)
	s.m.observe(OpHealthCheck, start, err)
	return err
}
