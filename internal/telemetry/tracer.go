package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrClientID    = "objio.client_id"
	AttrImage       = "objio.image"
	AttrOperation   = "objio.op"
	AttrOffset      = "objio.offset"
	AttrLength      = "objio.length"
	AttrExtents     = "objio.extents"
	AttrSubRequests = "objio.sub_requests"
	AttrResult      = "objio.result"

	AttrObject   = "objio.object"
	AttrObjectNo = "objio.object_no"

	AttrWatchHandle = "objio.watch.handle"
	AttrWatchState  = "objio.watch.state"
	AttrNotifyID    = "objio.notify.id"

	AttrStoreType = "objio.store.type"
	AttrBucket    = "objio.store.bucket"
	AttrKey       = "objio.store.key"
)

func ClientID(id string) attribute.KeyValue    { return attribute.String(AttrClientID, id) }
func Image(name string) attribute.KeyValue     { return attribute.String(AttrImage, name) }
func Operation(op string) attribute.KeyValue   { return attribute.String(AttrOperation, op) }
func Offset(off uint64) attribute.KeyValue     { return attribute.Int64(AttrOffset, int64(off)) }
func Length(n uint64) attribute.KeyValue       { return attribute.Int64(AttrLength, int64(n)) }
func Extents(n int) attribute.KeyValue         { return attribute.Int(AttrExtents, n) }
func SubRequests(n int) attribute.KeyValue     { return attribute.Int(AttrSubRequests, n) }
func Result(r int64) attribute.KeyValue        { return attribute.Int64(AttrResult, r) }
func Object(name string) attribute.KeyValue    { return attribute.String(AttrObject, name) }
func ObjectNo(n uint64) attribute.KeyValue     { return attribute.Int64(AttrObjectNo, int64(n)) }
func WatchHandle(h uint64) attribute.KeyValue  { return attribute.Int64(AttrWatchHandle, int64(h)) }
func WatchState(s string) attribute.KeyValue   { return attribute.String(AttrWatchState, s) }
func NotifyID(id uint64) attribute.KeyValue    { return attribute.Int64(AttrNotifyID, int64(id)) }
func StoreType(t string) attribute.KeyValue    { return attribute.String(AttrStoreType, t) }
func Bucket(name string) attribute.KeyValue    { return attribute.String(AttrBucket, name) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }

// StartRequestSpan starts the span covering one striped image request.
func StartRequestSpan(ctx context.Context, op, image string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Operation(op), Image(image)}, attrs...)
	return Tracer().Start(ctx, "io."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

// StartObjectSpan starts a span for a single object operation inside a transport.
func StartObjectSpan(ctx context.Context, op, object string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Operation(op), Object(object)}, attrs...)
	return Tracer().Start(ctx, "object."+op, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for an object store backend call.
func StartStoreSpan(ctx context.Context, op, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Operation(op), StoreType(storeType)}, attrs...)
	return Tracer().Start(ctx, "store."+op, trace.WithAttributes(all...))
}

// StartWatchSpan starts a span for a watch lifecycle step (register, rewatch, unregister).
func StartWatchSpan(ctx context.Context, step, object string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Object(object)}, attrs...)
	return Tracer().Start(ctx, "watch."+step, trace.WithAttributes(all...))
}
