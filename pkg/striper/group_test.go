package striper

import "testing"

func TestGroup_OneRequestPerObject(t *testing.T) {
	// 2 objects per set, 4 units per object: a 3-object-set write touches
	// objects 0..5 and lands several units on each.
	l := NewLayout(4*kib, kib, 2)
	extents := []ImageExtent{{Offset: 0, Length: 24 * kib}}

	groups := l.Group(extents)
	if len(groups) != 6 {
		t.Fatalf("Expected 6 object requests, got %d", len(groups))
	}
	for i, g := range groups {
		if g.ObjectNo != uint64(i) {
			t.Errorf("group %d: ObjectNo = %d", i, g.ObjectNo)
		}
		if g.Length() != 4*kib {
			t.Errorf("group %d: Length = %d, want %d", i, g.Length(), 4*kib)
		}
		// Units on one object are contiguous in the object but not in the
		// buffer, so they stay separate.
		if len(g.Extents) != 4 {
			t.Errorf("group %d: %d extents, want 4", i, len(g.Extents))
		}
		if !g.CoversObject(l.ObjectSize) {
			t.Errorf("group %d: interleaved units fill the object", i)
		}
	}
}

func TestGroup_MergesContiguousRanges(t *testing.T) {
	l := NewLayout(4*kib, 4*kib, 1)
	extents := []ImageExtent{{Offset: 0, Length: 100}, {Offset: 100, Length: 200}}

	groups := l.Group(extents)
	if len(groups) != 1 {
		t.Fatalf("Expected 1 object request, got %d", len(groups))
	}
	if len(groups[0].Extents) != 1 {
		t.Fatalf("Expected merged extent, got %d", len(groups[0].Extents))
	}
	e := groups[0].Extents[0]
	if e.Offset != 0 || e.Length != 300 || e.BufOffset != 0 {
		t.Errorf("merged extent = %+v", e)
	}
}

func TestGroup_SameObjectNonContiguous(t *testing.T) {
	l := NewLayout(4*kib, 4*kib, 1)
	extents := []ImageExtent{{Offset: 1000, Length: 10}, {Offset: 10, Length: 10}}

	groups := l.Group(extents)
	if len(groups) != 1 {
		t.Fatalf("Expected 1 object request, got %d", len(groups))
	}
	g := groups[0]
	if len(g.Extents) != 2 {
		t.Fatalf("Expected 2 extents, got %d", len(g.Extents))
	}
	if g.Extents[1].Offset != 10 || g.Extents[1].BufOffset != 10 {
		t.Errorf("extent 1 = %+v", g.Extents[1])
	}
	if g.CoversObject(l.ObjectSize) {
		t.Error("partial request should not cover the object")
	}
}

func TestGroup_WholeObject(t *testing.T) {
	l := NewLayout(4*kib, 4*kib, 1)
	groups := l.Group([]ImageExtent{{Offset: 4 * kib, Length: 4 * kib}})
	if len(groups) != 1 || !groups[0].CoversObject(l.ObjectSize) {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestEstimateObjectCount(t *testing.T) {
	l := NewLayout(4*kib, kib, 3)
	tests := []struct {
		name    string
		extents []ImageExtent
		min     int
	}{
		{"empty", nil, 0},
		{"one unit", []ImageExtent{{Offset: 0, Length: 10}}, 1},
		{"two units", []ImageExtent{{Offset: 0, Length: 2 * kib}}, 2},
		{"whole set", []ImageExtent{{Offset: 0, Length: 12 * kib}}, 3},
		{"two sets", []ImageExtent{{Offset: 11 * kib, Length: 2 * kib}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := l.EstimateObjectCount(tt.extents)
			actual := len(l.Group(tt.extents))
			if actual != tt.min {
				t.Fatalf("actual objects = %d, want %d", actual, tt.min)
			}
			if est < actual {
				t.Errorf("EstimateObjectCount = %d, below actual %d", est, actual)
			}
		})
	}
}
