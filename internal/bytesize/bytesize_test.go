package bytesize

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"64Ki", 64 * KiB, false},
		{"64KiB", 64 * KiB, false},
		{"4MiB", 4 * MiB, false},
		{"4mi", 4 * MiB, false},
		{"1GiB", GiB, false},
		{"1K", 1000, false},
		{"100MB", 100 * 1000 * 1000, false},
		{"  8 MiB ", 8 * MiB, false},
		{"", 0, true},
		{"lots", 0, true},
		{"12XB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarshalTextRoundTrip(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{4 * MiB, "4MiB"},
		{64 * KiB, "64KiB"},
		{3 * GiB, "3GiB"},
		{1500, "1500"},
		{0, "0"},
	}

	for _, tt := range tests {
		text, err := tt.in.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", tt.in, err)
		}
		if string(text) != tt.want {
			t.Errorf("MarshalText(%d) = %q, want %q", tt.in, text, tt.want)
		}
		var back ByteSize
		if err := back.UnmarshalText(text); err != nil || back != tt.in {
			t.Errorf("UnmarshalText(%q) = %d, %v; want %d", text, back, err, tt.in)
		}
	}
}

func TestYAML(t *testing.T) {
	var cfg struct {
		ObjectSize ByteSize `yaml:"object_size"`
	}
	if err := yaml.Unmarshal([]byte("object_size: 4MiB\n"), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if cfg.ObjectSize != 4*MiB {
		t.Errorf("ObjectSize = %d, want %d", cfg.ObjectSize, 4*MiB)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, b := range []ByteSize{1, 2, 4096, 4 * MiB} {
		if !b.IsPowerOfTwo() {
			t.Errorf("%d should be a power of two", b)
		}
	}
	for _, b := range []ByteSize{0, 3, 1000, 6 * MiB} {
		if b.IsPowerOfTwo() {
			t.Errorf("%d should not be a power of two", b)
		}
	}
}

func TestString(t *testing.T) {
	if got := (4 * MiB).String(); got != "4.0 MiB" {
		t.Errorf("String() = %q, want %q", got, "4.0 MiB")
	}
}
