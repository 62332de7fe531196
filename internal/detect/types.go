// Package detect finds table boundaries in raw sheet grids using layered
// heuristics with an optional AI refinement pass.
package detect

import "github.com/tablemorph/tablemorph/internal/tabular"

// Table origin labels assigned during hybrid reconciliation.
const (
	OriginHeuristic   = "heuristic"    // heuristic-only detection
	OriginAIConfirmed = "ai_confirmed" // heuristic boundary confirmed by the AI pass
	OriginAIOnly      = "ai_only"      // found only by the AI pass
)

// Table types.
const (
	TypeDataTable = "data_table"
	TypeSummary   = "summary"
	TypeMetadata  = "metadata"
)

// DetectedTable is one table found in a sheet.
type DetectedTable struct {
	TableID     string         `json:"table_id"`
	Title       string         `json:"title,omitempty"`
	Boundary    tabular.Region `json:"boundary"`
	HeaderRow   int            `json:"header_row"` // row offset of the header inside the boundary
	ColumnNames []string       `json:"column_names"`
	ColumnCount int            `json:"column_count"`
	RowCount    int            `json:"row_count"`
	TableType   string         `json:"table_type"`
	Confidence  float64        `json:"confidence"`
	Origin      string         `json:"origin"`

	// Up to five non-empty values per column, keyed by column name.
	SampleValues map[string][]string `json:"sample_values,omitempty"`
}

// MetadataSection is a key-value block outside any table, like
// "Company: ABC Corp" header lines.
type MetadataSection struct {
	SectionID string            `json:"section_id"`
	StartRow  int               `json:"start_row"`
	EndRow    int               `json:"end_row"`
	Entries   map[string]string `json:"entries"`
}

// MultiTableAnalysis is the full detection result for one sheet.
type MultiTableAnalysis struct {
	FileName            string            `json:"file_name"`
	SheetName           string            `json:"sheet_name"`
	Tables              []DetectedTable   `json:"tables"`
	MetadataSections    []MetadataSection `json:"metadata_sections,omitempty"`
	TotalTablesDetected int               `json:"total_tables_detected"`
	TotalRowsInSheet    int               `json:"total_rows_in_sheet"`
	TotalColsInSheet    int               `json:"total_cols_in_sheet"`
	DetectionMethod     string            `json:"detection_method"` // "heuristic" or "hybrid"
	OverallConfidence   float64           `json:"overall_confidence"`
	DetectionNotes      string            `json:"detection_notes,omitempty"`
}

// Best returns the highest-confidence data table, nil when none exist.
func (a *MultiTableAnalysis) Best() *DetectedTable {
	var best *DetectedTable
	for i := range a.Tables {
		t := &a.Tables[i]
		if t.TableType != TypeDataTable && t.TableType != "" {
			continue
		}
		if best == nil || t.Confidence > best.Confidence {
			best = t
		}
	}
	return best
}
