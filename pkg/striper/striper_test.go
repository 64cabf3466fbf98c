package striper

import (
	"errors"
	"math/rand/v2"
	"testing"
)

const (
	kib = 1024
	mib = 1024 * kib
)

func collect(seq func(yield func(ObjectExtent) bool)) []ObjectExtent {
	var out []ObjectExtent
	for e := range seq {
		out = append(out, e)
	}
	return out
}

func TestExtents_SingleObject(t *testing.T) {
	l := NewLayout(4*mib, 4*mib, 1)

	got := collect(l.Extents(1000, 5000, 0))
	if len(got) != 1 {
		t.Fatalf("Expected 1 extent, got %d", len(got))
	}
	e := got[0]
	if e.ObjectNo != 0 {
		t.Errorf("ObjectNo = %d, want 0", e.ObjectNo)
	}
	if e.Offset != 1000 {
		t.Errorf("Offset = %d, want 1000", e.Offset)
	}
	if e.Length != 5000 {
		t.Errorf("Length = %d, want 5000", e.Length)
	}
	if e.BufOffset != 0 {
		t.Errorf("BufOffset = %d, want 0", e.BufOffset)
	}
}

func TestExtents_StripeCountOneIgnoresStripeUnit(t *testing.T) {
	l := NewLayout(4*mib, 64*kib, 1)
	if l.StripeUnit != 4*mib {
		t.Fatalf("StripeUnit = %d, want object size", l.StripeUnit)
	}

	got := collect(l.Extents(4*mib-10, 20, 0))
	if len(got) != 2 {
		t.Fatalf("Expected 2 extents, got %d", len(got))
	}
	if got[0].ObjectNo != 0 || got[0].Offset != 4*mib-10 || got[0].Length != 10 {
		t.Errorf("extent 0 = %+v", got[0])
	}
	if got[1].ObjectNo != 1 || got[1].Offset != 0 || got[1].Length != 10 || got[1].BufOffset != 10 {
		t.Errorf("extent 1 = %+v", got[1])
	}
}

func TestExtents_RoundRobin(t *testing.T) {
	// 3 objects per set, 4 stripe units per object.
	l := NewLayout(4*mib, mib, 3)

	got := collect(l.Extents(0, 4*mib, 0))
	want := []ObjectExtent{
		{ObjectNo: 0, Offset: 0, Length: mib, BufOffset: 0, ImageOffset: 0},
		{ObjectNo: 1, Offset: 0, Length: mib, BufOffset: mib, ImageOffset: mib},
		{ObjectNo: 2, Offset: 0, Length: mib, BufOffset: 2 * mib, ImageOffset: 2 * mib},
		{ObjectNo: 0, Offset: mib, Length: mib, BufOffset: 3 * mib, ImageOffset: 3 * mib},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d extents, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extent %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExtents_SecondObjectSet(t *testing.T) {
	l := NewLayout(4*mib, mib, 3)

	// First byte past the first object set (3 objects * 4MiB).
	objectNo, off := l.Locate(12 * mib)
	if objectNo != 3 || off != 0 {
		t.Errorf("Locate(12MiB) = (%d, %d), want (3, 0)", objectNo, off)
	}

	// Last byte of the first object set lives at the end of object 2.
	objectNo, off = l.Locate(12*mib - 1)
	if objectNo != 2 || off != 4*mib-1 {
		t.Errorf("Locate(12MiB-1) = (%d, %d), want (2, %d)", objectNo, off, 4*mib-1)
	}
}

func TestExtents_ZeroLength(t *testing.T) {
	l := NewLayout(4*mib, mib, 2)
	if got := collect(l.Extents(123, 0, 0)); len(got) != 0 {
		t.Errorf("Expected no extents, got %d", len(got))
	}
}

func TestExtents_EarlyBreakAndRestart(t *testing.T) {
	l := NewLayout(mib, 64*kib, 4)
	seq := l.Extents(0, mib, 0)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("break: n = %d, want 2", n)
	}
	if got := len(collect(seq)); got != 16 {
		t.Errorf("restart: got %d extents, want 16", got)
	}
}

func TestMapExtents_BufferOffsetsSpanList(t *testing.T) {
	l := NewLayout(4*mib, 4*mib, 1)
	extents := []ImageExtent{{Offset: 100, Length: 50}, {Offset: 8 * mib, Length: 30}}

	got := collect(l.MapExtents(extents))
	if len(got) != 2 {
		t.Fatalf("Expected 2 extents, got %d", len(got))
	}
	if got[1].ObjectNo != 2 || got[1].BufOffset != 50 || got[1].ImageOffset != 8*mib {
		t.Errorf("extent 1 = %+v", got[1])
	}
}

// Every byte of the input maps to exactly one (object, offset) pair, no
// extent crosses a stripe unit and buffer offsets are contiguous.
func TestExtents_Coverage(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		unit := uint64(1) << (4 + r.IntN(6))     // 16B..512B
		objectSize := unit * uint64(1+r.IntN(8)) // 1..8 units
		count := uint64(1 + r.IntN(5))
		l := NewLayout(objectSize, unit, count)
		if err := l.Validate(); err != nil {
			t.Fatalf("Validate(%+v): %v", l, err)
		}

		offset := uint64(r.IntN(1 << 14))
		length := uint64(r.IntN(1 << 13))

		seen := make(map[[2]uint64]bool)
		next := offset
		var buf uint64
		for e := range l.Extents(offset, length, 0) {
			if e.ImageOffset != next {
				t.Fatalf("%+v: gap at %d, extent starts at %d", l, next, e.ImageOffset)
			}
			if e.BufOffset != buf {
				t.Fatalf("%+v: BufOffset = %d, want %d", l, e.BufOffset, buf)
			}
			if e.Length == 0 {
				t.Fatalf("%+v: empty extent", l)
			}
			if uint64(e.Offset)+uint64(e.Length) > l.ObjectSize {
				t.Fatalf("%+v: extent %+v crosses object end", l, e)
			}
			if uint64(e.Offset)/l.StripeUnit != (uint64(e.Offset)+uint64(e.Length)-1)/l.StripeUnit {
				t.Fatalf("%+v: extent %+v crosses stripe unit", l, e)
			}
			for i := range uint64(e.Length) {
				key := [2]uint64{e.ObjectNo, uint64(e.Offset) + i}
				if seen[key] {
					t.Fatalf("%+v: byte %v mapped twice", l, key)
				}
				seen[key] = true

				objectNo, objectOffset := l.Locate(e.ImageOffset + i)
				if objectNo != e.ObjectNo || objectOffset != uint64(e.Offset)+i {
					t.Fatalf("%+v: Locate(%d) = (%d, %d), extent says (%d, %d)",
						l, e.ImageOffset+i, objectNo, objectOffset, e.ObjectNo, uint64(e.Offset)+i)
				}
			}
			next += uint64(e.Length)
			buf += uint64(e.Length)
		}
		if next != offset+length {
			t.Fatalf("%+v: covered up to %d, want %d", l, next, offset+length)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		want   error
	}{
		{"valid", Layout{4 * mib, mib, 4}, nil},
		{"count one ignores unit", Layout{4 * mib, 3, 1}, nil},
		{"zero object size", Layout{0, mib, 2}, ErrZeroObjectSize},
		{"zero unit", Layout{4 * mib, 0, 2}, ErrZeroStripeUnit},
		{"zero count", Layout{4 * mib, mib, 0}, ErrZeroStripeCount},
		{"unaligned", Layout{4 * mib, 3 * kib, 2}, ErrUnalignedUnit},
		{"too large", Layout{8 << 30, mib, 2}, ErrObjectSizeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("rbd_data.1234", 0x2a); got != "rbd_data.1234.000000000000002a" {
		t.Errorf("ObjectName = %q", got)
	}
}
