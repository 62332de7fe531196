package tabular

import (
	"fmt"
	"strings"
)

// Table is an ordered-column table. Cells are nil for missing values,
// otherwise strings carrying the source text.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable builds a table, padding short rows with nil so every row has
// len(columns) cells.
func NewTable(columns []string, rows [][]any) *Table {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(columns))
		copy(row, r)
		out[i] = row
	}
	return &Table{Columns: columns, Rows: out}
}

func (t *Table) NumRows() int { return len(t.Rows) }
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Cell returns the value at row i in the named column, nil when the column is
// absent.
func (t *Table) Cell(i int, name string) any {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][idx]
}

// SetCell writes the value at row i in the named column, ignoring unknown
// columns.
func (t *Table) SetCell(i int, name string, v any) {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return
	}
	t.Rows[i][idx] = v
}

// Column returns all values of the named column, empty when absent.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// AddColumn appends a column filled with nil and returns its index. If the
// column already exists its index is returned unchanged.
func (t *Table) AddColumn(name string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}

// Row returns row i as a column-name keyed map.
func (t *Table) Row(i int) map[string]any {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	m := make(map[string]any, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[i][j]
	}
	return m
}

// Head returns a copy of the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return NewTable(append([]string(nil), t.Columns...), t.Rows[:n])
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	return NewTable(append([]string(nil), t.Columns...), t.Rows)
}

// SampleValues returns up to max non-empty values from the named column.
func (t *Table) SampleValues(name string, max int) []string {
	var out []string
	for _, v := range t.Column(name) {
		if IsEmpty(v) {
			continue
		}
		out = append(out, CellString(v))
		if len(out) >= max {
			break
		}
	}
	return out
}

// IsEmpty reports whether a cell carries no value.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.TrimSpace(s) == ""
}

// CellString renders a cell as a string, "" for nil.
func CellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
