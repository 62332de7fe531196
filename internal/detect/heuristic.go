package detect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablemorph/tablemorph/internal/tabular"
)

// Detection thresholds.
const (
	minTableRows = 2
	minTableCols = 2

	verticalConfidence   = 0.9
	horizontalConfidence = 0.85

	// All heuristic tables at or above this confidence skip the AI pass.
	heuristicAcceptThreshold = 0.8
)

// heuristicDetection finds contiguous data blocks split by empty rows, then
// splits each block on empty columns, and finally scores header rows.
func heuristicDetection(grid tabular.Grid) []DetectedTable {
	var tables []DetectedTable
	for _, rowBoundary := range findVerticalBlocks(grid) {
		tables = append(tables, splitHorizontal(grid, rowBoundary)...)
	}
	for i := range tables {
		t := &tables[i]
		t.TableID = fmt.Sprintf("table_%03d", i+1)
		t.TableType = TypeDataTable
		t.Origin = OriginHeuristic
		headerRow, names := detectHeaderRow(grid, t.Boundary)
		t.HeaderRow = headerRow
		t.ColumnNames = names
		t.ColumnCount = len(names)
		t.RowCount = (t.Boundary.EndRow - t.Boundary.StartRow + 1) - headerRow - 1
	}
	return tables
}

// findVerticalBlocks returns boundaries of blocks separated by empty rows.
// When no separators exist the whole sheet is one block.
func findVerticalBlocks(grid tabular.Grid) []tabular.Region {
	var boundaries []tabular.Region
	appendBlock := func(start, end int) {
		if end-start+1 < minTableRows {
			return
		}
		lo, hi, ok := dataColumnRange(grid, start, end)
		if !ok || hi-lo+1 < minTableCols {
			return
		}
		boundaries = append(boundaries, tabular.Region{StartRow: start, EndRow: end, StartCol: lo, EndCol: hi})
	}

	start := 0
	for r := 0; r < len(grid); r++ {
		if rowEmpty(grid[r]) {
			appendBlock(start, r-1)
			start = r + 1
		}
	}
	appendBlock(start, len(grid)-1)
	return boundaries
}

// splitHorizontal cuts a row block on fully-empty columns.
func splitHorizontal(grid tabular.Grid, b tabular.Region) []DetectedTable {
	width := 0
	if len(grid) > 0 {
		width = len(grid[0])
	}
	var emptyCols []int
	for c := 0; c < width; c++ {
		if colEmpty(grid, c, b.StartRow, b.EndRow) {
			emptyCols = append(emptyCols, c)
		}
	}
	if len(emptyCols) == 0 {
		return []DetectedTable{{Boundary: b, Confidence: verticalConfidence}}
	}

	var tables []DetectedTable
	appendSegment := func(startCol, endCol int) {
		if endCol-startCol+1 < minTableCols {
			return
		}
		tables = append(tables, DetectedTable{
			Boundary: tabular.Region{
				StartRow: b.StartRow, EndRow: b.EndRow,
				StartCol: startCol, EndCol: endCol,
			},
			Confidence: horizontalConfidence,
		})
	}
	startCol := b.StartCol
	for _, c := range emptyCols {
		if c > startCol {
			appendSegment(startCol, c-1)
		}
		startCol = c + 1
	}
	if startCol <= b.EndCol {
		appendSegment(startCol, b.EndCol)
	}
	return tables
}

// dataColumnRange returns the span of columns carrying any data inside the
// row range.
func dataColumnRange(grid tabular.Grid, startRow, endRow int) (int, int, bool) {
	lo, hi := -1, -1
	width := 0
	if len(grid) > 0 {
		width = len(grid[0])
	}
	for c := 0; c < width; c++ {
		if !colEmpty(grid, c, startRow, endRow) {
			if lo < 0 {
				lo = c
			}
			hi = c
		}
	}
	return lo, hi, lo >= 0
}

// detectHeaderRow scores the first five rows of a region for header
// likelihood: non-empty cells, non-numeric cells, uniqueness and string-ness.
// Blank header cells are synthesized as Column_N.
func detectHeaderRow(grid tabular.Grid, b tabular.Region) (int, []string) {
	bestRow, bestScore := 0, 0.0
	limit := b.EndRow - b.StartRow + 1
	if limit > 5 {
		limit = 5
	}
	for offset := 0; offset < limit; offset++ {
		score := scoreHeaderRow(grid[b.StartRow+offset], b.StartCol, b.EndCol)
		if score > bestScore {
			bestScore = score
			bestRow = offset
		}
	}

	header := grid[b.StartRow+bestRow]
	names := make([]string, 0, b.EndCol-b.StartCol+1)
	for c := b.StartCol; c <= b.EndCol; c++ {
		var v any
		if c < len(header) {
			v = header[c]
		}
		name := strings.TrimSpace(tabular.CellString(v))
		if name == "" {
			name = fmt.Sprintf("Column_%d", c-b.StartCol+1)
		}
		names = append(names, name)
	}
	return bestRow, names
}

func scoreHeaderRow(row []any, startCol, endCol int) float64 {
	score := 0.0
	seen := map[string]bool{}
	nonNull := 0
	unique := true
	numericCount := 0
	stringCount := 0
	width := endCol - startCol + 1

	for c := startCol; c <= endCol && c < len(row); c++ {
		v := row[c]
		if tabular.IsEmpty(v) {
			continue
		}
		s := strings.TrimSpace(tabular.CellString(v))
		nonNull++
		score += 10 // non-empty cell
		if looksNumeric(s) {
			numericCount++
		} else {
			stringCount++
		}
		if seen[s] {
			unique = false
		}
		seen[s] = true
	}
	score += float64(width-numericCount) * 5
	if nonNull > 0 && unique {
		score += 20
	}
	score += float64(stringCount) * 3
	return score
}

// looksNumeric is tolerant of currency formatting.
func looksNumeric(s string) bool {
	cleaned := strings.NewReplacer(",", "", "$", "", "₹", "").Replace(s)
	_, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	return err == nil
}

func rowEmpty(row []any) bool {
	for _, v := range row {
		if !tabular.IsEmpty(v) {
			return false
		}
	}
	return true
}

func colEmpty(grid tabular.Grid, col, startRow, endRow int) bool {
	for r := startRow; r <= endRow && r < len(grid); r++ {
		if col < len(grid[r]) && !tabular.IsEmpty(grid[r][col]) {
			return false
		}
	}
	return true
}
