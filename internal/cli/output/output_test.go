package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	td := NewTableData("Op", "Bytes")
	td.AddRow("write", "4.0 MiB")
	td.AddRow("read", "4.0 MiB")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, td))

	out := buf.String()
	assert.Contains(t, out, "OP")
	assert.Contains(t, out, "BYTES")
	assert.Contains(t, out, "write")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestKeyValues(t *testing.T) {
	kv := (&KeyValues{}).Add("layout.object_size", "4MiB").Add("store.type", "memory")

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(kv))
	assert.Contains(t, buf.String(), "layout.object_size")

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(kv))
	var m map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "memory", m["store.type"])

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(kv))
	m = nil
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "4MiB", m["layout.object_size"])
}

func TestPrinterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	require.NoError(t, p.Print(map[string]int{"objects": 3}))
	assert.JSONEq(t, `{"objects": 3}`, buf.String())
}

func TestStatusSuppressedForMachineFormats(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON, true)
	p.Success("done")
	p.Printf("registered %d\n", 1)
	assert.Empty(t, buf.String())

	p = NewPrinter(&buf, FormatTable, true)
	p.Warning("careful")
	assert.Equal(t, "\033[33mcareful\033[0m\n", buf.String())
}
