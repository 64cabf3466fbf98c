package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSizeClasses(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Empty", 0, DefaultSmallSize},
		{"StripeUnitFragment", 4096, DefaultSmallSize},
		{"ExactSmall", DefaultSmallSize, DefaultSmallSize},
		{"JustAboveSmall", DefaultSmallSize + 1, DefaultMediumSize},
		{"PartialObject", 512 << 10, DefaultMediumSize},
		{"WholeObject", DefaultLargeSize, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			defer Put(buf)

			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
		})
	}
}

func TestPutAndReuse(t *testing.T) {
	pool := NewPool(nil)

	buf := pool.Get(100)
	buf[0] = 0xAB
	pool.Put(buf)

	again := pool.Get(200)
	assert.Len(t, again, 200)
	assert.Equal(t, DefaultSmallSize, cap(again))
	pool.Put(again)
}

func TestPutForeignBuffers(t *testing.T) {
	pool := NewPool(nil)

	require.NotPanics(t, func() {
		pool.Put(nil)
		pool.Put(make([]byte, 10))
		pool.Put(make([]byte, DefaultLargeSize*2))
	})
}

func TestCustomPool(t *testing.T) {
	t.Run("CustomSizes", func(t *testing.T) {
		pool := NewPool(&Config{SmallSize: 1024, MediumSize: 8192, LargeSize: 65536})

		assert.Equal(t, 1024, cap(pool.Get(500)))
		assert.Equal(t, 8192, cap(pool.Get(2000)))
		assert.Equal(t, 65536, cap(pool.Get(10000)))
		assert.Equal(t, 70000, cap(pool.Get(70000)))
	})

	t.Run("ZeroValuesUseDefaults", func(t *testing.T) {
		pool := NewPool(&Config{MediumSize: 256 << 10})

		assert.Equal(t, DefaultSmallSize, cap(pool.Get(100)))
		assert.Equal(t, 256<<10, cap(pool.Get(100<<10)))
		assert.Equal(t, DefaultLargeSize, cap(pool.Get(2<<20)))
	})
}

func TestConcurrentGetPut(t *testing.T) {
	pool := NewPool(nil)
	sizes := []int{100, 70 << 10, 2 << 20}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				size := sizes[(g+i)%len(sizes)]
				buf := pool.Get(size)
				if len(buf) != size {
					t.Errorf("got len %d, want %d", len(buf), size)
				}
				buf[size-1] = byte(i)
				pool.Put(buf)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		buf := Get(DefaultLargeSize)
		Put(buf)
	}
}
