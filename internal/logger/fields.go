package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use these instead of ad-hoc strings so that log
// queries work across packages.
const (
	KeyTraceID  = "trace_id"
	KeySpanID   = "span_id"
	KeyClientID = "client_id"
	KeyImage    = "image"
	KeyOp       = "op"

	KeyObject      = "object"
	KeyObjectNo    = "object_no"
	KeyOffset      = "offset"
	KeyLength      = "length"
	KeyExtents     = "extents"
	KeySubRequests = "sub_requests"
	KeyResult      = "result"
	KeyPending     = "pending"

	KeyWatchHandle = "watch_handle"
	KeyNotifyID    = "notify_id"
	KeyNotifierID  = "notifier_id"
	KeyState       = "state"
	KeyFromState   = "from"
	KeyToState     = "to"
	KeyAttempt     = "attempt"
	KeyDelay       = "delay"

	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyPath      = "path"
	KeyWorkers   = "workers"
	KeyError     = "error"
	KeyDuration  = "duration_ms"
)

// Err returns the error attribute, or an empty attr for nil errors.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Object returns the object name attribute.
func Object(name string) slog.Attr {
	return slog.String(KeyObject, name)
}

// ObjectNo returns the object number attribute.
func ObjectNo(n uint64) slog.Attr {
	return slog.Uint64(KeyObjectNo, n)
}

// WatchHandle returns the watch handle attribute.
func WatchHandle(h uint64) slog.Attr {
	return slog.Uint64(KeyWatchHandle, h)
}

// NotifyID returns the notify id attribute.
func NotifyID(id uint64) slog.Attr {
	return slog.Uint64(KeyNotifyID, id)
}

// Result returns a completion result attribute (negative is -errno).
func Result(r int64) slog.Attr {
	return slog.Int64(KeyResult, r)
}

// DurationMs returns the elapsed time since start as a duration_ms attribute.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDuration, Duration(start))
}
