package striper

import (
	"cmp"
	"slices"
)

// ObjectRequest collects every extent of one request that lands on the
// same backing object, so a request issues one sub-request per object.
type ObjectRequest struct {
	ObjectNo uint64
	Extents  []ObjectExtent // ascending buffer order, adjacent ranges merged
}

// Length returns the number of bytes covered on the object.
func (r *ObjectRequest) Length() uint64 {
	var n uint64
	for _, e := range r.Extents {
		n += uint64(e.Length)
	}
	return n
}

// CoversObject reports whether the union of the extents spans the whole object.
func (r *ObjectRequest) CoversObject(objectSize uint64) bool {
	ranges := make([]ObjectExtent, len(r.Extents))
	copy(ranges, r.Extents)
	slices.SortFunc(ranges, func(a, b ObjectExtent) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	var end uint64
	for _, e := range ranges {
		if uint64(e.Offset) > end {
			return false
		}
		end = max(end, uint64(e.Offset)+uint64(e.Length))
	}
	return end >= objectSize
}

// EstimateObjectCount returns an upper bound on the number of distinct
// objects touched by extents, used to presize per-object indexes.
func (l Layout) EstimateObjectCount(extents []ImageExtent) int {
	l = l.Normalize()
	if l.StripeUnit == 0 || l.StripeCount == 0 {
		return 0
	}
	setSize := l.ObjectSetSize()

	var total uint64
	for _, e := range extents {
		if e.Length == 0 {
			continue
		}
		firstBlock := e.Offset / l.StripeUnit
		lastBlock := (e.End() - 1) / l.StripeUnit
		firstSet := e.Offset / setSize
		lastSet := (e.End() - 1) / setSize

		if firstSet == lastSet {
			total += min(lastBlock-firstBlock+1, l.StripeCount)
		} else {
			total += (lastSet - firstSet + 1) * l.StripeCount
		}
	}
	return int(total)
}

// Group maps extents and gathers the result per object, ordered by object
// number. Extents that are contiguous both in the object and in the caller
// buffer are merged.
func (l Layout) Group(extents []ImageExtent) []*ObjectRequest {
	index := make(map[uint64]*ObjectRequest, l.EstimateObjectCount(extents))
	var order []*ObjectRequest

	for oe := range l.MapExtents(extents) {
		req, ok := index[oe.ObjectNo]
		if !ok {
			req = &ObjectRequest{ObjectNo: oe.ObjectNo}
			index[oe.ObjectNo] = req
			order = append(order, req)
		}

		if n := len(req.Extents); n > 0 {
			last := &req.Extents[n-1]
			if last.Offset+last.Length == oe.Offset && last.BufOffset+uint64(last.Length) == oe.BufOffset {
				last.Length += oe.Length
				continue
			}
		}
		req.Extents = append(req.Extents, oe)
	}

	slices.SortFunc(order, func(a, b *ObjectRequest) int {
		return cmp.Compare(a.ObjectNo, b.ObjectNo)
	})
	return order
}
