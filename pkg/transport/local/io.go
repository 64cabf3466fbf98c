package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/objio/internal/telemetry"
	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/transport"
)

// execute runs one object request against the store and returns its
// result code.
func (cl *Cluster) execute(ctx context.Context, req *transport.ObjectRequest) int64 {
	ctx, span := telemetry.StartObjectSpan(ctx, req.Op.String(), req.Object,
		telemetry.Length(uint64(req.Length())))
	defer span.End()

	var (
		n   int64
		err error
	)
	switch req.Op {
	case transport.OpRead:
		n, err = cl.read(ctx, req)
	case transport.OpWrite:
		n, err = cl.write(ctx, req)
	case transport.OpZero:
		err = cl.zero(ctx, req)
	case transport.OpRemove:
		err = cl.remove(ctx, req)
	default:
		err = fmt.Errorf("unsupported op %d: %w", req.Op, transport.ErrInvalid)
	}

	if err != nil {
		err = storeError(err)
		telemetry.RecordError(ctx, err)
		return transport.Result(err)
	}
	return n
}

// storeError maps object store errors onto transport errnos.
func storeError(err error) error {
	switch {
	case errors.Is(err, objectstore.ErrObjectNotFound):
		return fmt.Errorf("%w: %w", transport.ErrNotFound, err)
	case errors.Is(err, objectstore.ErrStoreClosed):
		return fmt.Errorf("%w: %w", transport.ErrShutdown, err)
	default:
		return err
	}
}

func (cl *Cluster) read(ctx context.Context, req *transport.ObjectRequest) (int64, error) {
	lock := cl.objectLock(req.Object)
	lock.RLock()
	defer lock.RUnlock()

	var total int64
	for _, seg := range req.Segments {
		if len(seg.Data) < int(seg.Length) {
			return 0, fmt.Errorf("read buffer shorter than segment: %w", transport.ErrInvalid)
		}

		data, err := cl.store.GetObjectRange(ctx, req.Object, int64(seg.Offset), int64(seg.Length))
		if err != nil {
			return 0, err
		}
		copied := copy(seg.Data[:seg.Length], data)
		clear(seg.Data[copied:seg.Length])
		total += int64(seg.Length)
	}
	return total, nil
}

// loadForUpdate returns the current object content, or nil when the object
// does not exist yet.
func (cl *Cluster) loadForUpdate(ctx context.Context, object string) ([]byte, error) {
	data, err := cl.store.GetObject(ctx, object)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return nil, nil
	}
	return data, err
}

func (cl *Cluster) write(ctx context.Context, req *transport.ObjectRequest) (int64, error) {
	lock := cl.objectLock(req.Object)
	lock.Lock()
	defer lock.Unlock()

	data, err := cl.loadForUpdate(ctx, req.Object)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, seg := range req.Segments {
		if len(seg.Data) != int(seg.Length) {
			return 0, fmt.Errorf("write data length %d != segment length %d: %w",
				len(seg.Data), seg.Length, transport.ErrInvalid)
		}
		end := int(seg.Offset) + int(seg.Length)
		if end > len(data) {
			data = append(data, make([]byte, end-len(data))...)
		}
		copy(data[seg.Offset:end], seg.Data)
		total += int64(seg.Length)
	}

	if err := cl.store.PutObject(ctx, req.Object, data); err != nil {
		return 0, err
	}
	return total, nil
}

func (cl *Cluster) zero(ctx context.Context, req *transport.ObjectRequest) error {
	lock := cl.objectLock(req.Object)
	lock.Lock()
	defer lock.Unlock()

	data, err := cl.loadForUpdate(ctx, req.Object)
	if err != nil || data == nil {
		return err
	}

	for _, seg := range req.Segments {
		start := min(int(seg.Offset), len(data))
		end := min(int(seg.Offset)+int(seg.Length), len(data))
		clear(data[start:end])
	}
	return cl.store.PutObject(ctx, req.Object, data)
}

func (cl *Cluster) remove(ctx context.Context, req *transport.ObjectRequest) error {
	lock := cl.objectLock(req.Object)
	lock.Lock()
	defer lock.Unlock()

	return cl.store.DeleteObject(ctx, req.Object)
}
