// Package bytesize provides a byte count type that decodes from
// human-readable strings such as "4MiB", "64Ki" or "1G".
package bytesize

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes. Binary suffixes (Ki, MiB, ...) multiply by
// 1024, decimal suffixes (K, MB, ...) by 1000; a bare number is bytes.
type ByteSize uint64

const (
	B   ByteSize = 1
	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
	GiB ByteSize = 1 << 30
	TiB ByteSize = 1 << 40
)

// Parse converts a human-readable size to a ByteSize.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText lets ByteSize be decoded by mapstructure and yaml.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText renders exact binary multiples with their unit ("4MiB")
// and anything else as a plain byte count, so output parses back losslessly.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		if b >= u.size && b%u.size == 0 {
			return fmt.Appendf(nil, "%d%s", b/u.size, u.name), nil
		}
	}
	return fmt.Appendf(nil, "%d", uint64(b)), nil
}

// String returns an approximate human-readable size ("4.0 MiB").
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 { return uint64(b) }

// IsPowerOfTwo reports whether b is a non-zero power of two.
func (b ByteSize) IsPowerOfTwo() bool {
	return b != 0 && b&(b-1) == 0
}
