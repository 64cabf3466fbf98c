package output

import (
	"encoding/json"
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(data.Rows())

	table.Render()
	return nil
}

// TableData is an ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow adds a row to the table.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }

func (t *TableData) Rows() [][]string { return t.rows }

// KeyValues is a two-column table of settings, printed in insertion order.
type KeyValues struct {
	pairs [][2]string
}

// Add appends one setting.
func (kv *KeyValues) Add(key, value string) *KeyValues {
	kv.pairs = append(kv.pairs, [2]string{key, value})
	return kv
}

func (kv *KeyValues) Headers() []string { return []string{"Setting", "Value"} }

func (kv *KeyValues) Rows() [][]string {
	rows := make([][]string, len(kv.pairs))
	for i, p := range kv.pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return rows
}

// MarshalJSON renders the pairs as a flat object.
func (kv *KeyValues) MarshalJSON() ([]byte, error) {
	return json.Marshal(kv.asMap())
}

// MarshalYAML renders the pairs as a flat mapping.
func (kv *KeyValues) MarshalYAML() (any, error) {
	return kv.asMap(), nil
}

func (kv *KeyValues) asMap() map[string]string {
	m := make(map[string]string, len(kv.pairs))
	for _, p := range kv.pairs {
		m[p[0]] = p[1]
	}
	return m
}
