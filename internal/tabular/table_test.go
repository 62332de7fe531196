package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable(
		[]string{"Name", "City"},
		[][]any{
			{"John", "Mumbai"},
			{"Jane", "Delhi"},
			{"", nil},
		},
	)
}

func TestNewTablePadsShortRows(t *testing.T) {
	table := NewTable([]string{"a", "b", "c"}, [][]any{{"1"}})
	require.Equal(t, 3, table.NumCols())
	assert.Equal(t, []any{"1", nil, nil}, table.Rows[0])
}

func TestCellAccess(t *testing.T) {
	table := testTable()
	assert.Equal(t, "Mumbai", table.Cell(0, "City"))
	assert.Nil(t, table.Cell(0, "Missing"))
	assert.Nil(t, table.Cell(9, "City"))

	table.SetCell(0, "City", "Pune")
	assert.Equal(t, "Pune", table.Cell(0, "City"))
	table.SetCell(0, "Missing", "x") // no-op
	assert.Equal(t, 2, table.NumCols())
}

func TestColumnAndIndex(t *testing.T) {
	table := testTable()
	assert.Equal(t, 1, table.ColumnIndex("City"))
	assert.Equal(t, -1, table.ColumnIndex("Missing"))
	assert.True(t, table.HasColumn("Name"))
	assert.Equal(t, []any{"Mumbai", "Delhi", nil}, table.Column("City"))
	assert.Nil(t, table.Column("Missing"))
}

func TestAddColumn(t *testing.T) {
	table := testTable()
	idx := table.AddColumn("State")
	assert.Equal(t, 2, idx)
	assert.Nil(t, table.Cell(0, "State"))

	// Adding an existing column is idempotent.
	assert.Equal(t, 2, table.AddColumn("State"))
	assert.Equal(t, 3, table.NumCols())
}

func TestRowMap(t *testing.T) {
	table := testTable()
	assert.Equal(t, map[string]any{"Name": "John", "City": "Mumbai"}, table.Row(0))
	assert.Nil(t, table.Row(99))
}

func TestHeadAndClone(t *testing.T) {
	table := testTable()
	head := table.Head(2)
	assert.Equal(t, 2, head.NumRows())
	assert.Equal(t, 3, table.Head(10).NumRows())

	clone := table.Clone()
	clone.SetCell(0, "Name", "changed")
	clone.Columns[0] = "renamed"
	assert.Equal(t, "John", table.Cell(0, "Name"))
	assert.Equal(t, "Name", table.Columns[0])
}

func TestSampleValuesSkipsEmpties(t *testing.T) {
	table := testTable()
	assert.Equal(t, []string{"John", "Jane"}, table.SampleValues("Name", 5))
	assert.Equal(t, []string{"John"}, table.SampleValues("Name", 1))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   "))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0))
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "x", CellString("x"))
	assert.Equal(t, "42", CellString(42))
}
