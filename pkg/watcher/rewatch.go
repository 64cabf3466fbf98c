package watcher

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/internal/telemetry"
	"github.com/marmos91/objio/pkg/transport"
)

// rewatchStep names the stages of a rewatch.
type rewatchStep int

const (
	stepUnwatch rewatchStep = iota
	stepWatch
	stepDone
)

func (s rewatchStep) String() string {
	switch s {
	case stepUnwatch:
		return "unwatch"
	case stepWatch:
		return "watch"
	default:
		return "done"
	}
}

// rewatchRequest re-establishes a broken watch: drop the stale handle, then
// register a new one. It runs with the Watcher in REWATCHING.
//
//	unwatch(old) ---> watch(new) ---> done
//	    |                               ^
//	    +---- blocklisted --------------+
type rewatchRequest struct {
	w        *Watcher
	ctx      context.Context
	span     trace.Span
	object   string
	old      transport.WatchHandle
	step     rewatchStep
	onFinish func(error)
}

func newRewatchRequest(w *Watcher, object string, old transport.WatchHandle, onFinish func(error)) *rewatchRequest {
	ctx, span := telemetry.StartWatchSpan(w.baseCtx, "rewatch", object,
		telemetry.WatchHandle(uint64(old)))
	return &rewatchRequest{
		w:        w,
		ctx:      ctx,
		span:     span,
		object:   object,
		old:      old,
		onFinish: onFinish,
	}
}

func (r *rewatchRequest) send() {
	r.advance(stepUnwatch, nil)
}

// advance runs the next step. Each asynchronous step calls back into
// advance with its result.
func (r *rewatchRequest) advance(step rewatchStep, err error) {
	r.step = step
	switch step {
	case stepUnwatch:
		if r.old == 0 {
			r.advance(stepWatch, nil)
			return
		}
		r.w.tr.Unwatch(r.ctx, r.old, transport.CompleterFunc(r.handleUnwatch))
	case stepWatch:
		r.watch()
	case stepDone:
		telemetry.EndWithError(r.span, err)
		r.onFinish(err)
	}
}

func (r *rewatchRequest) handleUnwatch(res int64) {
	err := transport.Error(res)
	if errors.Is(err, transport.ErrBlocklisted) {
		logger.Error("Client blocklisted during rewatch", logger.KeyObject, r.object, logger.Err(err))
		r.advance(stepDone, err)
		return
	}
	if err != nil {
		// The stale session is gone either way.
		logger.Debug("Failed to unwatch stale handle",
			logger.KeyObject, r.object,
			logger.KeyWatchHandle, uint64(r.old),
			logger.Err(err))
	}
	r.advance(stepWatch, nil)
}

func (r *rewatchRequest) watch() {
	w := r.w

	// The handle is published under the lock before the registration can
	// complete.
	w.mu.Lock()
	w.handle = w.tr.Watch(r.ctx, r.object, w, transport.CompleterFunc(r.handleWatch))
	w.mu.Unlock()
}

func (r *rewatchRequest) handleWatch(res int64) {
	err := transport.Error(res)
	if err != nil {
		logger.Error("Failed to re-register watch", logger.KeyObject, r.object, logger.Err(err))

		r.w.mu.Lock()
		r.w.handle = 0
		r.w.mu.Unlock()
	}
	r.advance(stepDone, err)
}
