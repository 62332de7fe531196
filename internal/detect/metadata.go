package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablemorph/tablemorph/internal/tabular"
)

var keyValuePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9\s]*?):\s*(.+)$`)

// detectMetadataSections scans rows outside every table for key-value
// patterns and groups consecutive hits into sections.
func detectMetadataSections(grid tabular.Grid, tables []DetectedTable) []MetadataSection {
	tableRows := map[int]bool{}
	for _, t := range tables {
		for r := t.Boundary.StartRow; r <= t.Boundary.EndRow; r++ {
			tableRows[r] = true
		}
	}

	var sections []MetadataSection
	sectionStart := -1
	entries := map[string]string{}
	flush := func(endRow int) {
		if len(entries) == 0 || sectionStart < 0 {
			return
		}
		sections = append(sections, MetadataSection{
			SectionID: fmt.Sprintf("meta_%03d", len(sections)+1),
			StartRow:  sectionStart,
			EndRow:    endRow,
			Entries:   entries,
		})
		entries = map[string]string{}
		sectionStart = -1
	}

	for r := 0; r < len(grid); r++ {
		if tableRows[r] {
			flush(r - 1)
			continue
		}
		if key, value, ok := extractKeyValue(grid[r]); ok {
			if sectionStart < 0 {
				sectionStart = r
			}
			entries[key] = value
		}
	}
	flush(len(grid) - 1)
	return sections
}

// extractKeyValue matches "Key: Value" in the first cell or a two-cell
// key/value row. Rows with more than three values are not metadata.
func extractKeyValue(row []any) (string, string, bool) {
	var nonEmpty []string
	for _, v := range row {
		if !tabular.IsEmpty(v) {
			nonEmpty = append(nonEmpty, strings.TrimSpace(tabular.CellString(v)))
		}
	}
	if len(nonEmpty) > 3 {
		return "", "", false
	}

	var first string
	if len(row) > 0 && !tabular.IsEmpty(row[0]) {
		first = tabular.CellString(row[0])
	}
	if m := keyValuePattern.FindStringSubmatch(first); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}

	if len(nonEmpty) == 2 {
		key, value := nonEmpty[0], nonEmpty[1]
		if key != "" && value != "" && !isDigits(strings.ReplaceAll(key, " ", "")) {
			return key, value, true
		}
	}
	return "", "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// extractSamples pulls up to five non-empty values per column of a table.
func extractSamples(grid tabular.Grid, t *DetectedTable) map[string][]string {
	samples := map[string][]string{}
	dataStart := t.Boundary.StartRow + t.HeaderRow + 1
	if dataStart > t.Boundary.EndRow {
		return samples
	}
	for colIdx, name := range t.ColumnNames {
		c := t.Boundary.StartCol + colIdx
		if c > t.Boundary.EndCol {
			break
		}
		var vals []string
		for r := dataStart; r <= t.Boundary.EndRow && len(vals) < 5; r++ {
			if c >= len(grid[r]) {
				continue
			}
			if v := grid[r][c]; !tabular.IsEmpty(v) {
				vals = append(vals, tabular.CellString(v))
			}
		}
		samples[name] = vals
	}
	return samples
}
