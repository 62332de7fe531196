package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewLoaderRejectsUnknownExtension(t *testing.T) {
	_, err := NewLoader("data.txt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported file extension ".txt"`)

	for _, name := range []string{"a.xlsx", "a.xls", "a.xlsm", "a.csv", "a.xml"} {
		_, err := NewLoader(name, nil)
		assert.NoError(t, err, name)
	}
}

func TestCSVSheetNames(t *testing.T) {
	path := writeFile(t, "customers.csv", "Name\nJohn\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	assert.False(t, l.IsSpreadsheet())

	sheets, err := l.SheetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, sheets)
}

func TestLoadCSVRagged(t *testing.T) {
	path := writeFile(t, "ragged.csv",
		"Name,Phone,City\n"+
			"John,987\n"+
			"Jane,912,Delhi\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	grid, err := l.LoadRaw("")
	require.NoError(t, err)
	require.Len(t, grid, 3)
	// Short records are padded to the widest row.
	assert.Len(t, grid[1], 3)
	assert.Nil(t, grid[1][2])
	assert.Equal(t, "Delhi", grid[2][2])
}

func TestLoadCSVNAValues(t *testing.T) {
	path := writeFile(t, "na.csv",
		"Name,City\n"+
			"John,NA\n"+
			"Jane,null\n"+
			"Joe,None\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	grid, err := l.LoadRaw("")
	require.NoError(t, err)
	assert.Nil(t, grid[1][1])
	assert.Nil(t, grid[2][1])
	assert.Nil(t, grid[3][1])
}

func TestLoadCSVWithUTF8BOM(t *testing.T) {
	path := writeFile(t, "bom.csv", "\xEF\xBB\xBFName\nJosé\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	grid, err := l.LoadRaw("")
	require.NoError(t, err)
	assert.Equal(t, "Name", grid[0][0])
	assert.Equal(t, "José", grid[1][0])
	assert.Equal(t, "utf-8-sig", l.Encoding())
}

func TestLoadCSVWindows1252Fallback(t *testing.T) {
	// 0xE9 is é in Windows-1252 and invalid UTF-8 on its own.
	path := writeFile(t, "legacy.csv", "Name\nJos\xE9\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	grid, err := l.LoadRaw("")
	require.NoError(t, err)
	assert.Equal(t, "José", grid[1][0])
	assert.Equal(t, "windows-1252", l.Encoding())
}

func TestEncodingDetection(t *testing.T) {
	path := writeFile(t, "plain.csv", "Name\nJohn\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	// Unknown until something is loaded.
	assert.Empty(t, l.Encoding())

	_, err = l.LoadRaw("")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", l.Encoding())
}

func TestLoadFull(t *testing.T) {
	path := writeFile(t, "full.csv",
		"Name,City\n"+
			"John,Mumbai\n"+
			",\n"+
			"Jane,Delhi\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	table, err := l.LoadFull("", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, table.Columns)
	// The all-empty row is dropped.
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, "Delhi", table.Cell(1, "City"))
}

func TestLoadFullHeaderBeyondGrid(t *testing.T) {
	path := writeFile(t, "tiny.csv", "Name\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	_, err = l.LoadFull("", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header row 5 beyond grid")
}

func TestLoadSample(t *testing.T) {
	path := writeFile(t, "sample.csv", "N\n1\n2\n3\n4\n5\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	table, err := l.LoadSample("", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
}

func TestLoadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Customers"))
	require.NoError(t, f.SetSheetRow("Customers", "A1", &[]any{"Name", "City"}))
	require.NoError(t, f.SetSheetRow("Customers", "A2", &[]any{"John", "Mumbai"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	assert.True(t, l.IsSpreadsheet())

	sheets, err := l.SheetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Customers"}, sheets)

	table, err := l.LoadFull("Customers", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, table.Columns)
	assert.Equal(t, "Mumbai", table.Cell(0, "City"))
}

func TestLoadXML(t *testing.T) {
	path := writeFile(t, "contacts.xml", `<?xml version="1.0"?>
<contacts>
  <contact><name>John</name><city>Mumbai</city></contact>
  <contact><name>Jane</name><phone>912</phone></contact>
</contacts>`)
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	grid, err := l.LoadRaw("")
	require.NoError(t, err)
	require.Len(t, grid, 3)
	// Columns are the union across records, in first-seen order.
	assert.Equal(t, []any{"name", "city", "phone"}, grid[0])
	assert.Equal(t, "Mumbai", grid[1][1])
	assert.Nil(t, grid[1][2])
	assert.Equal(t, "912", grid[2][2])
}

func TestLoadXMLEmpty(t *testing.T) {
	path := writeFile(t, "empty.xml", `<?xml version="1.0"?><contacts></contacts>`)
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	_, err = l.LoadRaw("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record elements")
}

func TestExtractTable(t *testing.T) {
	grid := Grid{
		{"Report", nil, nil, nil},
		{"Name", "City", nil, "x"},
		{"John", "Mumbai", nil, "y"},
		{"Jane", "Delhi", nil, "z"},
	}
	region := Region{StartRow: 1, EndRow: 3, StartCol: 0, EndCol: 1}

	table, err := ExtractTable(grid, region, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, table.Columns)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, "Delhi", table.Cell(1, "City"))
}

func TestExtractTableBadRegion(t *testing.T) {
	grid := Grid{{"a"}, {"b"}}

	_, err := ExtractTable(grid, Region{StartRow: 0, EndRow: 9, StartCol: 0, EndCol: 0}, 0)
	require.Error(t, err)

	_, err = ExtractTable(grid, Region{StartRow: 0, EndRow: 1, StartCol: 0, EndCol: 0}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header offset beyond region")
}

func TestGridToTableSynthesizesColumnNames(t *testing.T) {
	table := gridToTable([]any{"Name", nil, "  "}, [][]any{{"a", "b", "c"}})
	assert.Equal(t, []string{"Name", "Column_2", "Column_3"}, table.Columns)
}
