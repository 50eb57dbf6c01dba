package frame

import (
	"fmt"
	"slices"
	"strings"
)

// Frame is an immutable table of rows. Column set and order are fixed at
// creation; every transformation returns a new Frame.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// Record is a single row keyed by column name.
type Record map[string]any

// New builds a Frame from column names and rows. Rows are copied, and each
// row must have exactly one value per column.
func New(columns []string, rows [][]any) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("duplicate column name '%s' at position %d", col, i+1)
		}
		index[col] = i
	}

	copied := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("mismatched number of values in row %d: expected %d, got %d", i+1, len(columns), len(row))
		}
		copied[i] = slices.Clone(row)
	}

	return &Frame{
		columns: slices.Clone(columns),
		index:   index,
		rows:    copied,
	}, nil
}

// Empty returns a Frame with the given columns and no rows.
func Empty(columns []string) *Frame {
	f, err := New(columns, nil)
	if err != nil {
		// only duplicate names can fail here
		panic(err)
	}
	return f
}

func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

func (f *Frame) Len() int {
	return len(f.rows)
}

func (f *Frame) HasColumn(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Row returns a copy of the values of row i in column order.
func (f *Frame) Row(i int) []any {
	return slices.Clone(f.rows[i])
}

// Rows returns a copy of all rows.
func (f *Frame) Rows() [][]any {
	out := make([][]any, len(f.rows))
	for i, row := range f.rows {
		out[i] = slices.Clone(row)
	}
	return out
}

func (f *Frame) Record(i int) Record {
	rec := make(Record, len(f.columns))
	for j, col := range f.columns {
		rec[col] = f.rows[i][j]
	}
	return rec
}

// Value returns the value at row i of col.
func (f *Frame) Value(i int, col string) (any, bool) {
	j, ok := f.index[col]
	if !ok {
		return nil, false
	}
	return f.rows[i][j], true
}

// String returns the value at row i of col formatted as text. Missing
// columns and nil values return "".
func (f *Frame) String(i int, col string) string {
	v, ok := f.Value(i, col)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Filter returns a new Frame with the rows for which keep returns true.
func (f *Frame) Filter(keep func(Record) bool) *Frame {
	var rows [][]any
	for i := range f.rows {
		if keep(f.Record(i)) {
			rows = append(rows, f.rows[i])
		}
	}
	out, _ := New(f.columns, rows)
	return out
}

// Select returns a new Frame with only the given columns, in the given order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	positions := make([]int, len(columns))
	for i, col := range columns {
		j, ok := f.index[col]
		if !ok {
			return nil, fmt.Errorf("column '%s' not found", col)
		}
		positions[i] = j
	}

	rows := make([][]any, len(f.rows))
	for i, row := range f.rows {
		selected := make([]any, len(positions))
		for k, j := range positions {
			selected[k] = row[j]
		}
		rows[i] = selected
	}
	return New(columns, rows)
}

// Unique returns the distinct non-empty string values of col, in order of
// first appearance.
func (f *Frame) Unique(col string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range f.rows {
		v := f.String(i, col)
		if IsNull(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// IsNull reports whether v counts as a missing value: nil or a blank string.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
