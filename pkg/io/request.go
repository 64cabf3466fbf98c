package io

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/internal/telemetry"
	"github.com/marmos91/objio/pkg/bufpool"
	"github.com/marmos91/objio/pkg/completion"
	"github.com/marmos91/objio/pkg/striper"
	"github.com/marmos91/objio/pkg/transport"
)

const (
	opRead    = "read"
	opWrite   = "write"
	opDiscard = "discard"
	opFlush   = "flush"
)

// request is the bookkeeping for one submitted image request. It lives
// until the caller's completion finalizes.
type request struct {
	img     *Image
	op      string
	c       *completion.Completion
	ctx     context.Context
	span    trace.Span
	start   time.Time
	extents []striper.ImageExtent
	length  uint64
	subs    int

	// assemble copies sub-request data to the caller on success (reads).
	assemble func()

	// release returns staging buffers once the result is final.
	release func()
}

func (img *Image) newRequest(ctx context.Context, c *completion.Completion, op string, extents []striper.ImageExtent) *request {
	length := striper.TotalLength(extents)

	var first striper.ImageExtent
	if len(extents) > 0 {
		first = extents[0]
	}
	ctx, span := telemetry.StartRequestSpan(ctx, op, img.name,
		telemetry.Offset(first.Offset),
		telemetry.Length(length),
		telemetry.Extents(len(extents)))
	ctx = img.requestContext(ctx, op)

	img.ops.Start()
	img.metrics.ObserveSubmit()

	return &request{
		img:     img,
		op:      op,
		c:       c,
		ctx:     ctx,
		span:    span,
		start:   time.Now(),
		extents: extents,
		length:  length,
	}
}

// finish runs as the completion finalizer, before any callback.
func (r *request) finish(res int64) int64 {
	if res >= 0 && r.assemble != nil {
		r.assemble()
	}
	if r.release != nil {
		r.release()
	}

	r.img.metrics.ObserveComplete(r.op, r.subs, res, time.Since(r.start))

	r.span.SetAttributes(telemetry.SubRequests(r.subs), telemetry.Result(res))
	err := transport.Error(res)
	telemetry.EndWithError(r.span, err)

	if err != nil {
		logger.WarnCtx(r.ctx, "Image request failed",
			logger.KeyOffset, r.firstOffset(),
			logger.KeyLength, r.length,
			logger.KeySubRequests, r.subs,
			logger.Err(err))
	} else {
		logger.DebugCtx(r.ctx, "Image request complete",
			logger.KeyLength, r.length,
			logger.KeySubRequests, r.subs,
			logger.KeyResult, res,
			logger.KeyDuration, logger.Duration(r.start))
	}

	r.img.ops.Finish()
	return res
}

func (r *request) firstOffset() uint64 {
	if len(r.extents) == 0 {
		return 0
	}
	return r.extents[0].Offset
}

// fail completes a request that never dispatched.
func (r *request) fail(err error) {
	r.c.SetFinalizer(r.finish)
	r.c.Fail(err)
}

// dispatch sizes the completion and issues every sub-request. Each
// sub-request holds its own completion reference, dropped by
// CompleteRequest.
func (r *request) dispatch(subs []*objectCompleter) {
	r.subs = len(subs)
	r.c.SetFinalizer(r.finish)
	for range subs {
		r.c.Get()
	}

	logger.DebugCtx(r.ctx, "Dispatching image request",
		logger.KeyExtents, len(r.extents),
		logger.KeySubRequests, len(subs))

	r.c.SetRequestCount(uint32(len(subs)))
	for _, s := range subs {
		r.img.tr.Dispatch(r.ctx, s.req, s)
	}
}

// objectCompleter adapts one object sub-request result before merging it
// into the request completion.
type objectCompleter struct {
	r        *request
	objectNo uint64
	req      *transport.ObjectRequest
	length   int64
}

func (oc *objectCompleter) CompleteRequest(res int64) {
	err := transport.Error(res)
	switch {
	case err == nil:
		res = oc.length
	case errors.Is(err, transport.ErrNotFound) && oc.req.Op == transport.OpRead:
		// A missing object is a hole.
		for _, seg := range oc.req.Segments {
			clear(seg.Data)
		}
		res = oc.length
	case errors.Is(err, transport.ErrNotFound) && (oc.req.Op == transport.OpRemove || oc.req.Op == transport.OpZero):
		res = oc.length
	default:
		logger.WarnCtx(oc.r.ctx, "Object request failed",
			logger.KeyObject, oc.req.Object,
			logger.KeyObjectNo, oc.objectNo,
			logger.Err(err))
	}
	oc.r.c.CompleteRequest(res)
}

// ============================================================================
// Submit entry points
// ============================================================================

// SubmitRead reads extents into dst and completes c with the number of
// bytes read. Missing objects read as zeros.
func (img *Image) SubmitRead(ctx context.Context, c *completion.Completion, extents []striper.ImageExtent, dst ReadDestination) {
	r := img.newRequest(ctx, c, opRead, extents)
	if img.isClosed() {
		r.fail(ErrImageClosed)
		return
	}
	if err := dst.Reserve(r.length); err != nil {
		r.fail(err)
		return
	}

	groups := img.layout.Group(extents)
	subs := make([]*objectCompleter, len(groups))
	bufs := make([][]byte, len(groups))

	for i, g := range groups {
		bufs[i] = bufpool.Get(int(g.Length()))
		segs := make([]transport.Segment, len(g.Extents))
		var pos uint64
		for j, e := range g.Extents {
			segs[j] = transport.Segment{
				Offset: e.Offset,
				Length: e.Length,
				Data:   bufs[i][pos : pos+uint64(e.Length)],
			}
			pos += uint64(e.Length)
		}
		subs[i] = img.objectRequest(r, g, transport.OpRead, segs)
	}

	r.assemble = func() {
		for i, g := range groups {
			var pos uint64
			for _, e := range g.Extents {
				dst.PutAt(bufs[i][pos:pos+uint64(e.Length)], e.BufOffset)
				pos += uint64(e.Length)
			}
		}
	}
	r.release = func() {
		for _, b := range bufs {
			bufpool.Put(b)
		}
	}
	r.dispatch(subs)
}

// SubmitWrite writes data across extents and completes c with the number
// of bytes written. data must stay unchanged until c is applied.
func (img *Image) SubmitWrite(ctx context.Context, c *completion.Completion, extents []striper.ImageExtent, data []byte) {
	r := img.newRequest(ctx, c, opWrite, extents)
	if img.isClosed() {
		r.fail(ErrImageClosed)
		return
	}
	if uint64(len(data)) != r.length {
		r.fail(fmt.Errorf("write of %d bytes for %d byte extents: %w", len(data), r.length, transport.ErrInvalid))
		return
	}

	groups := img.layout.Group(extents)
	subs := make([]*objectCompleter, len(groups))
	for i, g := range groups {
		segs := make([]transport.Segment, len(g.Extents))
		for j, e := range g.Extents {
			segs[j] = transport.Segment{
				Offset: e.Offset,
				Length: e.Length,
				Data:   data[e.BufOffset : e.BufOffset+uint64(e.Length)],
			}
		}
		subs[i] = img.objectRequest(r, g, transport.OpWrite, segs)
	}
	r.dispatch(subs)
}

// SubmitDiscard releases extents. Objects covered entirely are removed;
// partially covered objects have the ranges zeroed.
func (img *Image) SubmitDiscard(ctx context.Context, c *completion.Completion, extents []striper.ImageExtent) {
	r := img.newRequest(ctx, c, opDiscard, extents)
	if img.isClosed() {
		r.fail(ErrImageClosed)
		return
	}

	groups := img.layout.Group(extents)
	subs := make([]*objectCompleter, len(groups))
	for i, g := range groups {
		segs := make([]transport.Segment, len(g.Extents))
		for j, e := range g.Extents {
			segs[j] = transport.Segment{Offset: e.Offset, Length: e.Length}
		}

		op := transport.OpZero
		if g.CoversObject(img.layout.ObjectSize) {
			op = transport.OpRemove
		}
		subs[i] = img.objectRequest(r, g, op, segs)
	}
	r.dispatch(subs)
}

// SubmitFlush completes c once every request dispatched before it has
// completed.
func (img *Image) SubmitFlush(ctx context.Context, c *completion.Completion) {
	r := img.newRequest(ctx, c, opFlush, nil)
	if img.isClosed() {
		r.fail(ErrImageClosed)
		return
	}

	r.subs = 1
	r.c.SetFinalizer(r.finish)
	r.c.Get()
	r.c.SetRequestCount(1)
	img.tr.Flush(r.ctx, transport.CompleterFunc(func(res int64) {
		if res > 0 {
			res = 0
		}
		r.c.CompleteRequest(res)
	}))
}

func (img *Image) objectRequest(r *request, g *striper.ObjectRequest, op transport.Op, segs []transport.Segment) *objectCompleter {
	return &objectCompleter{
		r:        r,
		objectNo: g.ObjectNo,
		length:   int64(g.Length()),
		req: &transport.ObjectRequest{
			Op:       op,
			Object:   img.ObjectName(g.ObjectNo),
			Segments: segs,
		},
	}
}
