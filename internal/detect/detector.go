package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

const systemPrompt = `You are a Table Structure Detection Agent. Your job is to analyze raw Excel/CSV data and identify distinct tables within a single sheet.

TASK: Given a raw data dump from an Excel sheet, identify:
1. Table boundaries (start row, end row, start column, end column)
2. Table headers (which row contains column names)
3. Table types (data_table, summary, metadata)
4. Any metadata/title sections above tables

PATTERNS TO DETECT:
- Empty rows separating tables vertically
- Empty columns separating tables horizontally
- Title/heading rows before data tables
- Key-value metadata sections (e.g., "Company: ABC Corp")
- Summary rows at bottom of tables (e.g., "Total: 10000")

OUTPUT: Return ONLY valid JSON with this structure:
{
  "tables": [
    {
      "table_id": "table_001",
      "title": "Customer Details" or null,
      "start_row": 5,
      "end_row": 50,
      "start_col": 0,
      "end_col": 5,
      "header_row_offset": 0,
      "table_type": "data_table",
      "confidence": 0.95
    }
  ],
  "metadata_sections": [
    {
      "section_id": "meta_001",
      "start_row": 0,
      "end_row": 3,
      "entries": {"Company": "ABC Corp", "Date": "2024-01-15"}
    }
  ],
  "detection_notes": "Found 2 tables separated by empty rows"
}

Be precise with row/column indices (0-indexed). Do not include any text outside the JSON.`

// AI responses are validated against this schema before decoding.
var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"tables"},
	"properties": map[string]any{
		"tables": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"start_row", "end_row", "start_col", "end_col"},
				"properties": map[string]any{
					"table_id":          map[string]any{"type": "string"},
					"title":             map[string]any{"type": []any{"string", "null"}},
					"start_row":         map[string]any{"type": "integer", "minimum": 0},
					"end_row":           map[string]any{"type": "integer", "minimum": 0},
					"start_col":         map[string]any{"type": "integer", "minimum": 0},
					"end_col":           map[string]any{"type": "integer", "minimum": 0},
					"header_row_offset": map[string]any{"type": "integer", "minimum": 0},
					"table_type":        map[string]any{"type": "string"},
					"confidence":        map[string]any{"type": "number"},
				},
			},
		},
		"metadata_sections": map[string]any{"type": "array"},
		"detection_notes":   map[string]any{"type": "string"},
	},
}

type aiResponse struct {
	Tables []struct {
		TableID         string  `json:"table_id"`
		Title           *string `json:"title"`
		StartRow        int     `json:"start_row"`
		EndRow          int     `json:"end_row"`
		StartCol        int     `json:"start_col"`
		EndCol          int     `json:"end_col"`
		HeaderRowOffset int     `json:"header_row_offset"`
		TableType       string  `json:"table_type"`
		Confidence      float64 `json:"confidence"`
	} `json:"tables"`
	DetectionNotes string `json:"detection_notes"`
}

// Detector finds table boundaries in raw grids. The heuristic pass always
// runs; the AI pass refines it when heuristic confidence is low.
type Detector struct {
	client llm.Client
	logger *slog.Logger
}

func NewDetector(client llm.Client, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{client: client, logger: logger}
}

// Detect analyzes the whole grid of one sheet.
func (d *Detector) Detect(ctx context.Context, grid tabular.Grid, fileName, sheetName string) (*MultiTableAnalysis, error) {
	start := time.Now()
	cols := 0
	if len(grid) > 0 {
		cols = len(grid[0])
	}
	d.logger.Info("detect.start", "file", fileName, "sheet", sheetName, "rows", len(grid), "cols", cols)

	heuristic := heuristicDetection(grid)

	tables := heuristic
	method := "heuristic"
	notes := ""
	if !allConfident(heuristic) && d.client != nil {
		ai, err := d.aiDetection(ctx, grid, heuristic)
		if err != nil {
			d.logger.Warn("detect.ai_failed", "error", err)
			notes = fmt.Sprintf("AI detection failed: %v", err)
		} else {
			tables = mergeDetections(heuristic, ai, d.logger)
			notes = ai.DetectionNotes
		}
		method = "hybrid"
	}

	metadata := detectMetadataSections(grid, tables)
	for i := range tables {
		tables[i].SampleValues = extractSamples(grid, &tables[i])
	}

	overall := 0.0
	for _, t := range tables {
		overall += t.Confidence
	}
	if len(tables) > 0 {
		overall /= float64(len(tables))
	}

	d.logger.Info("detect.ok",
		"file", fileName,
		"method", method,
		"tables", len(tables),
		"metadata_sections", len(metadata),
		"overall_confidence", overall,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &MultiTableAnalysis{
		FileName:            fileName,
		SheetName:           sheetName,
		Tables:              tables,
		MetadataSections:    metadata,
		TotalTablesDetected: len(tables),
		TotalRowsInSheet:    len(grid),
		TotalColsInSheet:    cols,
		DetectionMethod:     method,
		OverallConfidence:   overall,
		DetectionNotes:      notes,
	}, nil
}

func allConfident(tables []DetectedTable) bool {
	if len(tables) == 0 {
		return false
	}
	for _, t := range tables {
		if t.Confidence < heuristicAcceptThreshold {
			return false
		}
	}
	return true
}

func (d *Detector) aiDetection(ctx context.Context, grid tabular.Grid, heuristic []DetectedTable) (*aiResponse, error) {
	var b strings.Builder
	b.WriteString("Analyze this raw Excel data and identify distinct tables.\n\n")
	b.WriteString("RAW DATA (showing row/column indices):\n")
	b.WriteString(renderGridWindow(grid, 50, 20))
	b.WriteString("\n\nHEURISTIC DETECTION RESULTS (may need refinement):\n")
	for _, t := range heuristic {
		fmt.Fprintf(&b, "- rows %d-%d, cols %d-%d, confidence %.2f\n",
			t.Boundary.StartRow, t.Boundary.EndRow, t.Boundary.StartCol, t.Boundary.EndCol, t.Confidence)
	}
	cols := 0
	if len(grid) > 0 {
		cols = len(grid[0])
	}
	fmt.Fprintf(&b, "\nTotal rows in sheet: %d\nTotal columns in sheet: %d\n\n", len(grid), cols)
	b.WriteString("Identify the table boundaries, headers, and any metadata sections. Return JSON as specified.")

	text, err := d.client.GetTextResponse(ctx, llm.Request{System: systemPrompt, Prompt: b.String()})
	if err != nil {
		return nil, err
	}
	raw := []byte(llm.StripCodeFences(text))
	var resp aiResponse
	if err := llm.ValidateAndDecode(responseSchema, raw, &resp); err != nil {
		return nil, fmt.Errorf("detection response: %w", err)
	}
	return &resp, nil
}

// renderGridWindow formats up to maxRows x maxCols cells with R/C indices for
// the AI prompt.
func renderGridWindow(grid tabular.Grid, maxRows, maxCols int) string {
	rows := len(grid)
	if rows > maxRows {
		rows = maxRows
	}
	cols := 0
	if len(grid) > 0 {
		cols = len(grid[0])
	}
	if cols > maxCols {
		cols = maxCols
	}

	var lines []string
	headers := make([]string, cols)
	for c := 0; c < cols; c++ {
		headers[c] = fmt.Sprintf("C%02d", c)
	}
	headerLine := "     | " + strings.Join(headers, " | ")
	lines = append(lines, headerLine, strings.Repeat("-", len(headerLine)))

	for r := 0; r < rows; r++ {
		cells := make([]string, cols)
		for c := 0; c < cols; c++ {
			var v any
			if c < len(grid[r]) {
				v = grid[r][c]
			}
			if tabular.IsEmpty(v) {
				cells[c] = "   "
				continue
			}
			s := tabular.CellString(v)
			if len(s) > 10 {
				s = s[:10]
			}
			cells[c] = fmt.Sprintf("%-10s", s)
		}
		lines = append(lines, fmt.Sprintf("R%02d | ", r)+strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}

// mergeDetections reconciles the heuristic and AI passes. Each outcome gets a
// named category: overlapping AI tables confirm a heuristic boundary
// (ai_confirmed, +0.1 confidence), non-overlapping AI tables above 0.7
// confidence are accepted as ai_only, the rest are rejected.
func mergeDetections(heuristic []DetectedTable, ai *aiResponse, logger *slog.Logger) []DetectedTable {
	tables := append([]DetectedTable(nil), heuristic...)

	confirmed, accepted, rejected := 0, 0, 0
	for _, at := range ai.Tables {
		aiBoundary := tabular.Region{
			StartRow: at.StartRow, EndRow: at.EndRow,
			StartCol: at.StartCol, EndCol: at.EndCol,
		}
		overlapped := false
		for i := range tables {
			if i >= len(heuristic) {
				break
			}
			if regionsOverlap(tables[i].Boundary, aiBoundary) {
				if at.Title != nil && *at.Title != "" {
					tables[i].Title = *at.Title
				}
				if at.TableType != "" {
					tables[i].TableType = at.TableType
				}
				tables[i].Confidence = min1(tables[i].Confidence + 0.1)
				tables[i].Origin = OriginAIConfirmed
				overlapped = true
				confirmed++
				break
			}
		}
		if overlapped {
			continue
		}
		if at.Confidence > 0.7 {
			id := at.TableID
			if id == "" {
				id = fmt.Sprintf("ai_table_%d", len(tables)+1)
			}
			title := ""
			if at.Title != nil {
				title = *at.Title
			}
			tableType := at.TableType
			if tableType == "" {
				tableType = TypeDataTable
			}
			tables = append(tables, DetectedTable{
				TableID:    id,
				Title:      title,
				Boundary:   aiBoundary,
				HeaderRow:  at.HeaderRowOffset,
				TableType:  tableType,
				Confidence: at.Confidence,
				Origin:     OriginAIOnly,
			})
			accepted++
		} else {
			rejected++
		}
	}
	logger.Info("detect.merge",
		"heuristic", len(heuristic),
		"ai_confirmed", confirmed,
		"ai_only_accepted", accepted,
		"ai_only_rejected", rejected,
	)
	return tables
}

func regionsOverlap(a, b tabular.Region) bool {
	rowOverlap := !(a.EndRow < b.StartRow || b.EndRow < a.StartRow)
	colOverlap := !(a.EndCol < b.StartCol || b.EndCol < a.StartCol)
	return rowOverlap && colOverlap
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
