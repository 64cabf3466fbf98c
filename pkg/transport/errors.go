package transport

import (
	"context"
	"errors"
	"syscall"
)

// Result codes travel through completions as signed integers: a
// non-negative value is a byte count, a negative value is -errno. The
// sentinels below are the errno values the core reacts to; match them with
// errors.Is.
var (
	// ErrBlocklisted indicates the client session was fenced by the cluster.
	//
	// Fatal for watches: a blocklisted client cannot re-register.
	ErrBlocklisted error = syscall.ESHUTDOWN

	// ErrNotFound indicates the object does not exist.
	//
	// Fatal for watches; a read of a missing object is a hole.
	ErrNotFound error = syscall.ENOENT

	// ErrTimedOut indicates the cluster gave up waiting (notify acks, watch pings).
	ErrTimedOut error = syscall.ETIMEDOUT

	// ErrInvalid indicates a malformed request.
	ErrInvalid error = syscall.EINVAL

	// ErrNotConnected indicates a watch handle that is no longer known to the cluster.
	ErrNotConnected error = syscall.ENOTCONN

	// ErrIO is the catch-all for failures without a more specific errno.
	ErrIO error = syscall.EIO

	// ErrShutdown indicates the transport was closed.
	ErrShutdown error = syscall.ECANCELED
)

// Result converts an error into a completion result code.
//
// nil maps to 0, a syscall.Errno anywhere in the chain maps to its negated
// value, context cancellation maps to -ECANCELED and deadlines to
// -ETIMEDOUT. Everything else becomes -EIO.
func Result(err error) int64 {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		return -int64(errno)
	case errors.Is(err, context.DeadlineExceeded):
		return -int64(syscall.ETIMEDOUT)
	case errors.Is(err, context.Canceled):
		return -int64(syscall.ECANCELED)
	default:
		return -int64(syscall.EIO)
	}
}

// Error converts a completion result code back into an error. Non-negative
// results are successes and yield nil.
func Error(r int64) error {
	if r >= 0 {
		return nil
	}
	return syscall.Errno(-r)
}

// IsFatalWatchError reports whether err permanently prevents a watch from
// being re-established.
func IsFatalWatchError(err error) bool {
	return errors.Is(err, ErrBlocklisted) || errors.Is(err, ErrNotFound)
}
