// Package striper maps logical image byte ranges onto backing objects.
//
// An image is striped across fixed-size objects in units of StripeUnit
// bytes, round-robin over StripeCount objects at a time:
//
//	stripe unit 0 -> object 0, unit 1 -> object 1, ... unit N-1 -> object N-1,
//	unit N -> object 0 (next offset inside it), ...
//
// Once every object in a set of StripeCount objects is full, striping
// continues on the next object set. With StripeCount == 1 the stripe unit
// is the whole object, which is plain chunking.
package striper

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by Layout.Validate.
var (
	ErrZeroObjectSize     = errors.New("object size must be greater than zero")
	ErrZeroStripeUnit     = errors.New("stripe unit must be greater than zero")
	ErrZeroStripeCount    = errors.New("stripe count must be greater than zero")
	ErrUnalignedUnit      = errors.New("object size must be a multiple of the stripe unit")
	ErrObjectSizeTooLarge = errors.New("object size exceeds 4GiB")
)

// Layout describes how an image is striped across objects.
type Layout struct {
	ObjectSize  uint64
	StripeUnit  uint64
	StripeCount uint64
}

// NewLayout returns a normalized layout.
func NewLayout(objectSize, stripeUnit, stripeCount uint64) Layout {
	return Layout{ObjectSize: objectSize, StripeUnit: stripeUnit, StripeCount: stripeCount}.Normalize()
}

// Normalize forces StripeUnit to ObjectSize when StripeCount is 1.
func (l Layout) Normalize() Layout {
	if l.StripeCount == 1 {
		l.StripeUnit = l.ObjectSize
	}
	return l
}

// Validate checks the layout after normalization.
func (l Layout) Validate() error {
	l = l.Normalize()
	switch {
	case l.ObjectSize == 0:
		return ErrZeroObjectSize
	case l.ObjectSize > math.MaxUint32:
		return ErrObjectSizeTooLarge
	case l.StripeCount == 0:
		return ErrZeroStripeCount
	case l.StripeUnit == 0:
		return ErrZeroStripeUnit
	case l.ObjectSize%l.StripeUnit != 0:
		return fmt.Errorf("%w: object size %d, stripe unit %d", ErrUnalignedUnit, l.ObjectSize, l.StripeUnit)
	}
	return nil
}

// StripesPerObject is the number of stripe units stored in one object.
func (l Layout) StripesPerObject() uint64 {
	l = l.Normalize()
	return l.ObjectSize / l.StripeUnit
}

// ObjectSetSize is the number of image bytes covered by one object set.
func (l Layout) ObjectSetSize() uint64 {
	return l.Normalize().ObjectSize * l.StripeCount
}

// ImageExtent is a logical byte range of the image.
type ImageExtent struct {
	Offset uint64
	Length uint64
}

// End returns the exclusive end offset.
func (e ImageExtent) End() uint64 { return e.Offset + e.Length }

// ObjectExtent is a contiguous range inside one backing object.
type ObjectExtent struct {
	ObjectNo uint64 // backing object number
	Offset   uint32 // offset within the object
	Length   uint32

	// BufOffset is the position of this range within the caller's buffer,
	// counted across all image extents of the request.
	BufOffset uint64

	// ImageOffset is the logical image offset this range starts at.
	ImageOffset uint64
}

// Locate returns the object number and in-object offset for an image offset.
func (l Layout) Locate(offset uint64) (objectNo uint64, objectOffset uint64) {
	l = l.Normalize()
	blockNo := offset / l.StripeUnit
	stripeNo := blockNo / l.StripeCount
	stripePos := blockNo % l.StripeCount
	stripesPerObject := l.ObjectSize / l.StripeUnit
	objectSet := stripeNo / stripesPerObject

	objectNo = objectSet*l.StripeCount + stripePos
	objectOffset = (stripeNo%stripesPerObject)*l.StripeUnit + offset%l.StripeUnit
	return objectNo, objectOffset
}

// Extents yields the object extents covering [offset, offset+length) in
// ascending image order. Each extent lies inside a single stripe unit and
// therefore a single object. bufBase is the buffer offset of the first byte.
//
// The returned function may be ranged over any number of times.
//
// Example (object size 4MiB, stripe unit 1MiB, stripe count 3):
//
//	offset 0,    length 3MiB → object 0 [0,1MiB), object 1 [0,1MiB), object 2 [0,1MiB)
//	offset 3MiB, length 1MiB → object 0 [1MiB,2MiB)
func (l Layout) Extents(offset, length, bufBase uint64) func(yield func(ObjectExtent) bool) {
	l = l.Normalize()
	return func(yield func(ObjectExtent) bool) {
		if l.StripeUnit == 0 || l.StripeCount == 0 {
			return
		}
		cur := offset
		remaining := length
		bufOffset := bufBase

		for remaining > 0 {
			objectNo, objectOffset := l.Locate(cur)
			n := min(remaining, l.StripeUnit-cur%l.StripeUnit)

			ext := ObjectExtent{
				ObjectNo:    objectNo,
				Offset:      uint32(objectOffset),
				Length:      uint32(n),
				BufOffset:   bufOffset,
				ImageOffset: cur,
			}
			if !yield(ext) {
				return
			}

			cur += n
			bufOffset += n
			remaining -= n
		}
	}
}

// MapExtents yields object extents for a list of image extents processed in
// order. Buffer offsets run continuously across the list.
func (l Layout) MapExtents(extents []ImageExtent) func(yield func(ObjectExtent) bool) {
	return func(yield func(ObjectExtent) bool) {
		var buf uint64
		for _, ie := range extents {
			for oe := range l.Extents(ie.Offset, ie.Length, buf) {
				if !yield(oe) {
					return
				}
			}
			buf += ie.Length
		}
	}
}

// ObjectName returns the backing object name for objectNo.
func ObjectName(prefix string, objectNo uint64) string {
	return fmt.Sprintf("%s.%016x", prefix, objectNo)
}

// TotalLength sums the lengths of extents.
func TotalLength(extents []ImageExtent) uint64 {
	var n uint64
	for _, e := range extents {
		n += e.Length
	}
	return n
}
