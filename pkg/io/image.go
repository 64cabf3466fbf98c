package io

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/asyncop"
	"github.com/marmos91/objio/pkg/completion"
	"github.com/marmos91/objio/pkg/striper"
	"github.com/marmos91/objio/pkg/transport"
)

// Config describes an image.
type Config struct {
	// Name identifies the image in logs, traces and errors.
	Name string

	// ObjectPrefix is the prefix of backing object names. Defaults to Name.
	ObjectPrefix string

	// Layout is the striping layout.
	Layout striper.Layout
}

// Image is a striped logical device backed by numbered objects.
type Image struct {
	name    string
	prefix  string
	layout  striper.Layout
	tr      transport.Transport
	metrics *Metrics

	// ops counts submitted requests that have not finalized.
	ops asyncop.Tracker

	mu     sync.RWMutex
	closed bool
}

// NewImage validates cfg and binds it to tr. metrics may be nil.
func NewImage(tr transport.Transport, cfg Config, metrics *Metrics) (*Image, error) {
	layout := cfg.Layout.Normalize()
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("image %q: %w", cfg.Name, err)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("image name is required: %w", transport.ErrInvalid)
	}

	prefix := cfg.ObjectPrefix
	if prefix == "" {
		prefix = cfg.Name
	}

	return &Image{
		name:    cfg.Name,
		prefix:  prefix,
		layout:  layout,
		tr:      tr,
		metrics: metrics,
	}, nil
}

// Name returns the image name.
func (img *Image) Name() string { return img.name }

// Layout returns the normalized striping layout.
func (img *Image) Layout() striper.Layout { return img.layout }

// ObjectName returns the name of backing object objectNo.
func (img *Image) ObjectName(objectNo uint64) string {
	return striper.ObjectName(img.prefix, objectNo)
}

// Pending returns the number of requests that have not completed.
func (img *Image) Pending() int { return img.ops.Pending() }

// Close rejects new requests and waits for in-flight ones to complete.
func (img *Image) Close(ctx context.Context) error {
	img.mu.Lock()
	img.closed = true
	img.mu.Unlock()

	return img.ops.Wait(ctx)
}

func (img *Image) isClosed() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.closed
}

// requestContext attaches image and op fields for ctx-aware logging.
func (img *Image) requestContext(ctx context.Context, op string) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(strconv.FormatUint(img.tr.ClientID(), 10))
	}
	return logger.WithContext(ctx, lc.WithOp(op).WithImage(img.name))
}

// ============================================================================
// Blocking wrappers
// ============================================================================

// checkOpen fails fast for blocking calls on a closed image.
func (img *Image) checkOpen(op string, offset, length uint64) error {
	if img.isClosed() {
		return &RequestError{Op: op, Image: img.name, Offset: offset, Length: length, Err: ErrImageClosed}
	}
	return nil
}

func (img *Image) wait(ctx context.Context, c *completion.Completion, op string, offset, length uint64) (int64, error) {
	defer c.Release()

	if err := c.Wait(ctx); err != nil {
		return 0, &RequestError{Op: op, Image: img.name, Offset: offset, Length: length, Err: err}
	}
	return c.ReturnValue(), nil
}

// Read fills buf from the image starting at offset.
func (img *Image) Read(ctx context.Context, offset uint64, buf []byte) (int, error) {
	if err := img.checkOpen(opRead, offset, uint64(len(buf))); err != nil {
		return 0, err
	}
	c := completion.New()
	dst := &detachable{dst: LinearBuffer(buf)}
	extents := []striper.ImageExtent{{Offset: offset, Length: uint64(len(buf))}}
	img.SubmitRead(ctx, c, extents, dst)

	n, err := img.wait(ctx, c, opRead, offset, uint64(len(buf)))
	if err != nil {
		// Sub-requests may still be in flight; buf belongs to the caller
		// again once we return.
		dst.detach()
		return 0, err
	}
	return int(n), nil
}

// Write stores data at offset.
func (img *Image) Write(ctx context.Context, offset uint64, data []byte) error {
	if err := img.checkOpen(opWrite, offset, uint64(len(data))); err != nil {
		return err
	}
	c := completion.New()
	extents := []striper.ImageExtent{{Offset: offset, Length: uint64(len(data))}}
	img.SubmitWrite(ctx, c, extents, data)

	_, err := img.wait(ctx, c, opWrite, offset, uint64(len(data)))
	return err
}

// Discard releases [offset, offset+length). Whole objects are removed,
// partial ranges are zeroed.
func (img *Image) Discard(ctx context.Context, offset, length uint64) error {
	if err := img.checkOpen(opDiscard, offset, length); err != nil {
		return err
	}
	c := completion.New()
	img.SubmitDiscard(ctx, c, []striper.ImageExtent{{Offset: offset, Length: length}})

	_, err := img.wait(ctx, c, opDiscard, offset, length)
	return err
}

// Flush waits until every request submitted before it has completed.
func (img *Image) Flush(ctx context.Context) error {
	if err := img.checkOpen(opFlush, 0, 0); err != nil {
		return err
	}
	c := completion.New()
	img.SubmitFlush(ctx, c)

	_, err := img.wait(ctx, c, opFlush, 0, 0)
	return err
}
