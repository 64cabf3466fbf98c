package commands

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/objio/internal/bytesize"
	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/completion"
	"github.com/marmos91/objio/pkg/config"
	objio "github.com/marmos91/objio/pkg/io"
	"github.com/marmos91/objio/pkg/striper"
	"github.com/marmos91/objio/pkg/transport"
)

var (
	benchImage       string
	benchSize        string
	benchIOSize      string
	benchConcurrency int
	benchDiscard     bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Write, verify and discard a striped image",
	Long: `Run a striped I/O workload against the configured object store.

The benchmark writes a deterministic pattern across the image, reads it back
both chunk by chunk and as a single vectored request, verifies every byte,
and optionally discards the image and checks that it reads back as zeros.

Examples:
  # 64MiB image in 1MiB requests on the default layout
  objio bench

  # Wide striping over badger
  OBJIO_STORE_TYPE=badger OBJIO_STORE_BADGER_PATH=/tmp/objio \
    objio bench --size 256MiB --io-size 64KiB

  # Expose /metrics while the benchmark runs
  OBJIO_METRICS_ENABLED=true objio bench`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchImage, "image", "bench", "Image name")
	benchCmd.Flags().StringVar(&benchSize, "size", "64MiB", "Image size")
	benchCmd.Flags().StringVar(&benchIOSize, "io-size", "1MiB", "Size of each request")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 8, "Requests in flight")
	benchCmd.Flags().BoolVar(&benchDiscard, "discard", true, "Discard the image after verifying it")
}

// benchOptions describes one benchmark run.
type benchOptions struct {
	Image       string
	Size        uint64
	IOSize      uint64
	Concurrency int
	Discard     bool
}

// benchPhase is one measured phase of a run.
type benchPhase struct {
	Phase      string        `json:"phase" yaml:"phase"`
	Bytes      uint64        `json:"bytes" yaml:"bytes"`
	Requests   int           `json:"requests" yaml:"requests"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Throughput string        `json:"throughput" yaml:"throughput"`
}

// benchReport is the result of a run, rendered as a table of phases.
type benchReport struct {
	Image       string       `json:"image" yaml:"image"`
	ObjectSize  uint64       `json:"object_size" yaml:"object_size"`
	StripeUnit  uint64       `json:"stripe_unit" yaml:"stripe_unit"`
	StripeCount uint64       `json:"stripe_count" yaml:"stripe_count"`
	Objects     int          `json:"objects" yaml:"objects"`
	Phases      []benchPhase `json:"phases" yaml:"phases"`
}

func (r *benchReport) Headers() []string {
	return []string{"Phase", "Bytes", "Requests", "Duration", "Throughput"}
}

func (r *benchReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Phases))
	for _, p := range r.Phases {
		rows = append(rows, []string{
			p.Phase,
			bytesize.ByteSize(p.Bytes).String(),
			strconv.Itoa(p.Requests),
			p.Duration.Round(time.Microsecond).String(),
			p.Throughput,
		})
	}
	return rows
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	size, err := bytesize.Parse(benchSize)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}
	ioSize, err := bytesize.Parse(benchIOSize)
	if err != nil {
		return fmt.Errorf("invalid --io-size: %w", err)
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	stopTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	reg := newRegistry(cfg)
	cluster, err := config.CreateCluster(ctx, cfg, registerer(reg))
	if err != nil {
		return err
	}
	defer func() { _ = cluster.Close() }()

	client, err := cluster.Connect()
	if err != nil {
		return err
	}
	defer client.Close()

	startMonitoring(ctx, cfg, cluster.Store(), reg)

	var metrics *objio.Metrics
	if reg != nil {
		metrics = objio.NewMetrics(reg)
	}

	img, err := objio.NewImage(client, objio.Config{
		Name:         benchImage,
		ObjectPrefix: cfg.Layout.ObjectPrefix + "." + benchImage,
		Layout:       cfg.Layout.Striper(),
	}, metrics)
	if err != nil {
		return err
	}

	report, err := bench(ctx, img, benchOptions{
		Image:       benchImage,
		Size:        size.Uint64(),
		IOSize:      ioSize.Uint64(),
		Concurrency: benchConcurrency,
		Discard:     benchDiscard,
	}, func(ctx context.Context) (int, error) {
		keys, err := cluster.Store().ListByPrefix(ctx, cfg.Layout.ObjectPrefix+"."+benchImage+".")
		return len(keys), err
	})
	closeErr := img.Close(context.Background())
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	printer.Printf("Image %s: %s over %d objects (object %s, unit %s, count %d)\n",
		report.Image, bytesize.ByteSize(size), report.Objects,
		bytesize.ByteSize(report.ObjectSize), bytesize.ByteSize(report.StripeUnit), report.StripeCount)
	return printer.Print(report)
}

// bench runs the write, read, vectored read and discard phases against img.
// countObjects reports how many backing objects exist after the write.
func bench(ctx context.Context, img *objio.Image, opts benchOptions, countObjects func(context.Context) (int, error)) (*benchReport, error) {
	if opts.Size == 0 || opts.IOSize == 0 {
		return nil, fmt.Errorf("size and io-size must be positive: %w", transport.ErrInvalid)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	layout := img.Layout()
	report := &benchReport{
		Image:       opts.Image,
		ObjectSize:  layout.ObjectSize,
		StripeUnit:  layout.StripeUnit,
		StripeCount: layout.StripeCount,
	}

	data := pattern(opts.Size)
	chunks := chunkExtents(opts.Size, opts.IOSize)

	phase, err := timed("write", opts.Size, len(chunks), func() error {
		return forEachChunk(ctx, chunks, opts.Concurrency, func(ctx context.Context, e striper.ImageExtent) error {
			return img.Write(ctx, e.Offset, data[e.Offset:e.Offset+e.Length])
		})
	})
	if err != nil {
		return nil, err
	}
	report.Phases = append(report.Phases, phase)

	phase, err = timed("flush", 0, 1, func() error { return img.Flush(ctx) })
	if err != nil {
		return nil, err
	}
	report.Phases = append(report.Phases, phase)

	if countObjects != nil {
		if report.Objects, err = countObjects(ctx); err != nil {
			return nil, fmt.Errorf("count objects: %w", err)
		}
	}

	got := make([]byte, opts.Size)
	phase, err = timed("read", opts.Size, len(chunks), func() error {
		return forEachChunk(ctx, chunks, opts.Concurrency, func(ctx context.Context, e striper.ImageExtent) error {
			_, err := img.Read(ctx, e.Offset, got[e.Offset:e.Offset+e.Length])
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if err := verify(got, data); err != nil {
		return nil, err
	}
	report.Phases = append(report.Phases, phase)

	clear(got)
	phase, err = timed("readv", opts.Size, 1, func() error {
		return readVectored(ctx, img, chunks, got)
	})
	if err != nil {
		return nil, err
	}
	if err := verify(got, data); err != nil {
		return nil, err
	}
	report.Phases = append(report.Phases, phase)

	if !opts.Discard {
		return report, nil
	}

	phase, err = timed("discard", opts.Size, 1, func() error {
		return img.Discard(ctx, 0, opts.Size)
	})
	if err != nil {
		return nil, err
	}
	report.Phases = append(report.Phases, phase)

	if _, err := img.Read(ctx, 0, got); err != nil {
		return nil, err
	}
	if err := verify(got, make([]byte, opts.Size)); err != nil {
		return nil, fmt.Errorf("after discard: %w", err)
	}
	return report, nil
}

// readVectored reads every chunk with one striped request into an iovec
// laid over dst.
func readVectored(ctx context.Context, img *objio.Image, chunks []striper.ImageExtent, dst []byte) error {
	iov := make([][]byte, len(chunks))
	for i, e := range chunks {
		iov[i] = dst[e.Offset : e.Offset+e.Length]
	}

	c := completion.New()
	defer c.Release()
	img.SubmitRead(ctx, c, chunks, objio.VectorBuffer(iov))
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("vectored read: %w", err)
	}
	if n := uint64(c.ReturnValue()); n != uint64(len(dst)) {
		return fmt.Errorf("vectored read returned %d bytes, want %d", n, len(dst))
	}
	return nil
}

func forEachChunk(ctx context.Context, chunks []striper.ImageExtent, concurrency int,
	fn func(context.Context, striper.ImageExtent) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, e := range chunks {
		g.Go(func() error { return fn(gctx, e) })
	}
	return g.Wait()
}

func timed(name string, n uint64, requests int, fn func() error) (benchPhase, error) {
	start := time.Now()
	if err := fn(); err != nil {
		return benchPhase{}, fmt.Errorf("%s: %w", name, err)
	}
	d := time.Since(start)
	logger.Debug("Bench phase finished", "phase", name, "bytes", n, "duration", d.String())

	phase := benchPhase{Phase: name, Bytes: n, Requests: requests, Duration: d, Throughput: "-"}
	if n > 0 && d > 0 {
		perSec := uint64(float64(n) / d.Seconds())
		phase.Throughput = bytesize.ByteSize(perSec).String() + "/s"
	}
	return phase, nil
}

func chunkExtents(size, ioSize uint64) []striper.ImageExtent {
	chunks := make([]striper.ImageExtent, 0, (size+ioSize-1)/ioSize)
	for off := uint64(0); off < size; off += ioSize {
		chunks = append(chunks, striper.ImageExtent{Offset: off, Length: min(ioSize, size-off)})
	}
	return chunks
}

// pattern returns n bytes that differ between neighbouring objects so that
// misplaced extents are caught by verify.
func pattern(n uint64) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i/512)*7 + i%251 + 1)
	}
	return b
}

func verify(got, want []byte) error {
	if bytes.Equal(got, want) {
		return nil
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("verification failed at offset %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
	return fmt.Errorf("verification failed: length %d, want %d", len(got), len(want))
}
