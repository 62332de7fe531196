package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/tabular"
)

func TestDetectMetadataSections(t *testing.T) {
	grid := tabular.Grid{
		{"Company: Acme Traders", nil, nil},
		{"GSTIN", "27AAPFU0939F1ZV", nil},
		{nil, nil, nil},
		{"Name", "Phone", "City"},
		{"John", "987", "Mumbai"},
		{"Jane", "912", "Delhi"},
	}
	tables := []DetectedTable{
		{TableID: "table_001", Boundary: tabular.Region{StartRow: 3, EndRow: 5, StartCol: 0, EndCol: 2}},
	}

	sections := detectMetadataSections(grid, tables)
	require.Len(t, sections, 1)
	sec := sections[0]
	assert.Equal(t, "meta_001", sec.SectionID)
	assert.Equal(t, 0, sec.StartRow)
	assert.Equal(t, "Acme Traders", sec.Entries["Company"])
	assert.Equal(t, "27AAPFU0939F1ZV", sec.Entries["GSTIN"])
}

func TestExtractKeyValue(t *testing.T) {
	key, value, ok := extractKeyValue([]any{"Report Date: 2024-12-25"})
	require.True(t, ok)
	assert.Equal(t, "Report Date", key)
	assert.Equal(t, "2024-12-25", value)

	key, value, ok = extractKeyValue([]any{"Branch", "Mumbai"})
	require.True(t, ok)
	assert.Equal(t, "Branch", key)
	assert.Equal(t, "Mumbai", value)

	// Wide rows are data, not metadata.
	_, _, ok = extractKeyValue([]any{"a", "b", "c", "d"})
	assert.False(t, ok)

	// Numeric keys are data rows too.
	_, _, ok = extractKeyValue([]any{"42", "Mumbai"})
	assert.False(t, ok)

	_, _, ok = extractKeyValue([]any{nil, nil})
	assert.False(t, ok)
}

func TestExtractSamplesCapsAtFive(t *testing.T) {
	grid := tabular.Grid{
		{"N"},
		{"1"}, {"2"}, {nil}, {"3"}, {"4"}, {"5"}, {"6"},
	}
	table := &DetectedTable{
		Boundary:    tabular.Region{StartRow: 0, EndRow: 7, StartCol: 0, EndCol: 0},
		HeaderRow:   0,
		ColumnNames: []string{"N"},
	}

	samples := extractSamples(grid, table)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, samples["N"])
}
