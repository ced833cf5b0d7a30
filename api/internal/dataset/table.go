package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// nullMarkers are the cell values read as "no entry". They mirror the default
// NA tokens of common dataframe CSV readers, matched exactly.
var nullMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNull reports whether a raw cell value is a null marker.
func IsNull(value string) bool {
	_, ok := nullMarkers[value]
	return ok
}

// ErrMissingColumn indicates a required header is absent.
var ErrMissingColumn = errors.New("dataset: missing column")

// Table is an immutable CSV table with a header row.
type Table struct {
	columns map[string]int
	rows    [][]string
}

// Row is a view over one table row.
type Row struct {
	table *Table
	cells []string
}

// ReadTable parses CSV data whose first record is the header. Every name in
// required must appear in the header.
func ReadTable(r io.Reader, required ...string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &Table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = trimBOM(name)
		}
		if _, dup := t.columns[name]; !dup {
			t.columns[name] = i
		}
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.rows)+1, err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the i-th data row.
func (t *Table) Row(i int) Row {
	return Row{table: t, cells: t.rows[i]}
}

// IndexBy groups row positions by the non-null value of column, preserving
// file order within each group.
func (t *Table) IndexBy(column string) map[string][]int {
	index := make(map[string][]int)
	for i := range t.rows {
		key, ok := t.Row(i).Value(column)
		if !ok {
			continue
		}
		index[key] = append(index[key], i)
	}
	return index
}

// Value returns the cell for column and whether it holds an entry.
func (r Row) Value(column string) (string, bool) {
	pos, ok := r.table.columns[column]
	if !ok || pos >= len(r.cells) {
		return "", false
	}
	value := r.cells[pos]
	if IsNull(value) {
		return "", false
	}
	return value, true
}

// Ptr returns the cell as a pointer, nil when the cell is null.
func (r Row) Ptr(column string) *string {
	value, ok := r.Value(column)
	if !ok {
		return nil
	}
	return &value
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
