package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/config"
	objio "github.com/marmos91/objio/pkg/io"
	"github.com/marmos91/objio/pkg/objectstore/memory"
	"github.com/marmos91/objio/pkg/striper"
	"github.com/marmos91/objio/pkg/transport/local"
)

func newBenchImage(t *testing.T, layout striper.Layout) (*objio.Image, *local.Cluster) {
	t.Helper()
	cl := local.NewCluster(memory.New(), local.Config{})
	t.Cleanup(func() { _ = cl.Close() })

	client, err := cl.Connect()
	require.NoError(t, err)
	t.Cleanup(client.Close)

	img, err := objio.NewImage(client, objio.Config{Name: "bench", Layout: layout}, nil)
	require.NoError(t, err)
	return img, cl
}

func TestBench_StripedLayout(t *testing.T) {
	t.Parallel()

	img, cl := newBenchImage(t, striper.NewLayout(64<<10, 16<<10, 4))
	ctx := context.Background()

	report, err := bench(ctx, img, benchOptions{
		Image:       "bench",
		Size:        1 << 20,
		IOSize:      40 << 10,
		Concurrency: 4,
		Discard:     true,
	}, func(ctx context.Context) (int, error) {
		keys, err := cl.Store().ListByPrefix(ctx, "bench.")
		return len(keys), err
	})
	require.NoError(t, err)

	assert.Equal(t, 16, report.Objects)
	phases := make([]string, 0, len(report.Phases))
	for _, p := range report.Phases {
		phases = append(phases, p.Phase)
	}
	assert.Equal(t, []string{"write", "flush", "read", "readv", "discard"}, phases)
	assert.Equal(t, 26, report.Phases[0].Requests)
	assert.Len(t, report.Rows(), 5)

	keys, err := cl.Store().ListByPrefix(ctx, "bench.")
	require.NoError(t, err)
	assert.Empty(t, keys, "whole-object discard removes every object")
}

func TestBench_KeepImage(t *testing.T) {
	t.Parallel()

	img, cl := newBenchImage(t, config.GetDefaultConfig().Layout.Striper())
	report, err := bench(context.Background(), img, benchOptions{
		Size:   100 << 10,
		IOSize: 100 << 10,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, report.Phases, 4)

	keys, err := cl.Store().ListByPrefix(context.Background(), "bench.")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestBench_InvalidSize(t *testing.T) {
	t.Parallel()

	img, _ := newBenchImage(t, striper.NewLayout(4096, 4096, 1))
	_, err := bench(context.Background(), img, benchOptions{Size: 0, IOSize: 4096}, nil)
	assert.Error(t, err)
}

func TestChunkExtents(t *testing.T) {
	t.Parallel()

	chunks := chunkExtents(10, 4)
	assert.Equal(t, []striper.ImageExtent{
		{Offset: 0, Length: 4},
		{Offset: 4, Length: 4},
		{Offset: 8, Length: 2},
	}, chunks)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	want := pattern(1024)
	got := append([]byte(nil), want...)
	assert.NoError(t, verify(got, want))

	got[700]++
	err := verify(got, want)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 700")
}
