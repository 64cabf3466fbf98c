package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/objectstore/memory"
	"github.com/marmos91/objio/pkg/objectstore/storetest"
)

func TestInstrumentedStoreConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Store {
		return InstrumentStore(memory.New(), "memory", nil)
	})
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestInstrumentStoreRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := InstrumentStore(memory.New(), "memory", reg)
	ctx := context.Background()

	require.NoError(t, store.PutObject(ctx, "a", []byte("hello")))
	_, err := store.GetObjectRange(ctx, "a", 1, 3)
	require.NoError(t, err)
	_, err = store.GetObject(ctx, "missing")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
	require.NoError(t, store.HealthCheck(ctx))

	families, err := reg.Gather()
	require.NoError(t, err)

	const ops = "objio_store_operations_total"
	assert.Equal(t, 1.0, counterValue(t, families, ops, map[string]string{"operation": OpPut, "status": StatusOK, "store": "memory"}))
	assert.Equal(t, 1.0, counterValue(t, families, ops, map[string]string{"operation": OpGetRange, "status": StatusOK}))
	assert.Equal(t, 1.0, counterValue(t, families, ops, map[string]string{"operation": OpGet, "status": StatusNotFound}))
	assert.Equal(t, 1.0, counterValue(t, families, ops, map[string]string{"operation": OpHealthCheck, "status": StatusOK}))

	const bytes = "objio_store_bytes_total"
	assert.Equal(t, 5.0, counterValue(t, families, bytes, map[string]string{"direction": "write"}))
	assert.Equal(t, 3.0, counterValue(t, families, bytes, map[string]string{"direction": "read"}))
}

func TestNilStoreMetricsSafe(t *testing.T) {
	var m *StoreMetrics
	assert.NotPanics(t, func() {
		m.observe(OpPut, timeZero(), nil)
		m.bytes("read", 10)
	})
}

func timeZero() (t time.Time) { return }
