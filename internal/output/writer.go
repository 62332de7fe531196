// Package output renders transformed tables to styled XLSX workbooks with a
// data sheet, an error sheet and a summary sheet.
package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tablemorph/tablemorph/internal/tabular"
	"github.com/tablemorph/tablemorph/internal/validate"
)

const (
	sheetData    = "Transformed Data"
	sheetErrors  = "Errors"
	sheetSummary = "Summary"

	headerColor  = "4472C4"
	errorColor   = "FFC7CE"
	warningColor = "FFEB9C"

	maxColWidth = 50
)

// Writer produces XLSX output files under a base directory.
type Writer struct {
	outputDir string
	logger    *slog.Logger
}

func NewWriter(outputDir string, logger *slog.Logger) *Writer {
	if outputDir == "" {
		outputDir = "output"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{outputDir: outputDir, logger: logger}
}

// Write renders the table and report to fileName inside the output directory
// and returns the full path. The error sheet is only created when the report
// carries findings.
func (w *Writer) Write(table *tabular.Table, report *validate.Report, fileName string) (string, error) {
	start := time.Now()
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.outputDir, fileName)

	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeDataSheet(f, table); err != nil {
		return "", err
	}
	if report != nil && len(report.Errors) > 0 {
		if err := w.writeErrorSheet(f, report.Errors); err != nil {
			return "", err
		}
	}
	if report != nil {
		if err := w.writeSummarySheet(f, report); err != nil {
			return "", err
		}
	}
	// Drop the default sheet created by excelize.
	if _, err := f.GetSheetIndex("Sheet1"); err == nil {
		_ = f.DeleteSheet("Sheet1")
	}
	if idx, err := f.GetSheetIndex(sheetData); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("xlsx write: %w", err)
	}

	rows := 0
	if table != nil {
		rows = table.NumRows()
	}
	w.logger.Info("output.xlsx.ok",
		"path", path,
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

func (w *Writer) writeDataSheet(f *excelize.File, table *tabular.Table) error {
	if _, err := f.NewSheet(sheetData); err != nil {
		return err
	}
	headerStyle, borderStyle, err := baseStyles(f)
	if err != nil {
		return err
	}

	widths := make([]int, table.NumCols())
	for c, name := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheetData, cell, name); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheetData, cell, cell, headerStyle)
		widths[c] = len(name)
	}
	for r := 0; r < table.NumRows(); r++ {
		for c := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			v := table.Rows[r][c]
			if err := f.SetCellValue(sheetData, cell, cellValue(v)); err != nil {
				return err
			}
			_ = f.SetCellStyle(sheetData, cell, cell, borderStyle)
			if n := len(tabular.CellString(v)); n > widths[c] {
				widths[c] = n
			}
		}
	}
	applyWidths(f, sheetData, widths)
	return nil
}

func (w *Writer) writeErrorSheet(f *excelize.File, errs []validate.Error) error {
	if _, err := f.NewSheet(sheetErrors); err != nil {
		return err
	}
	headerStyle, _, err := baseStyles(f)
	if err != nil {
		return err
	}
	errorStyle, err := fillStyle(f, errorColor)
	if err != nil {
		return err
	}
	warningStyle, err := fillStyle(f, warningColor)
	if err != nil {
		return err
	}

	headers := []string{"Row #", "Error Type", "Column", "Value", "Issue", "Suggested Fix"}
	widths := make([]int, len(headers))
	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheetErrors, cell, h); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheetErrors, cell, cell, headerStyle)
		widths[c] = len(h)
	}

	for i, e := range errs {
		severity := "WARNING"
		style := warningStyle
		if e.Severity == "error" {
			severity = "ERROR"
			style = errorStyle
		}
		// Row numbers are 1-indexed for display.
		values := []any{e.RowIndex + 1, severity, e.Column, e.Value, e.Issue, e.SuggestedFix}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheetErrors, cell, v); err != nil {
				return err
			}
			_ = f.SetCellStyle(sheetErrors, cell, cell, style)
			if n := len(fmt.Sprintf("%v", v)); n > widths[c] {
				widths[c] = n
			}
		}
	}
	applyWidths(f, sheetErrors, widths)
	return nil
}

func (w *Writer) writeSummarySheet(f *excelize.File, report *validate.Report) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetCellValue(sheetSummary, "A1", "Transformation Summary"); err != nil {
		return err
	}
	_ = f.SetCellStyle(sheetSummary, "A1", "A1", titleStyle)

	stats := []struct {
		label string
		value any
	}{
		{"Status", strings.ToUpper(report.Status)},
		{"Total Rows", report.TotalRows},
		{"Successful Rows", report.SuccessfulRows},
		{"Failed Rows", report.FailedRows},
		{"Warning Rows", report.WarningRows},
		{"Quality Score", fmt.Sprintf("%.1f%%", report.QualityScore)},
	}
	for i, s := range stats {
		row := i + 3
		labelCell := fmt.Sprintf("A%d", row)
		if err := f.SetCellValue(sheetSummary, labelCell, s.label); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheetSummary, labelCell, labelCell, boldStyle)
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), s.value); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheetSummary, "A", "A", 20)
	_ = f.SetColWidth(sheetSummary, "B", "B", 30)
	return nil
}

func baseStyles(f *excelize.File) (header, border int, err error) {
	borders := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}
	header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    borders,
	})
	if err != nil {
		return 0, 0, err
	}
	border, err = f.NewStyle(&excelize.Style{Border: borders})
	if err != nil {
		return 0, 0, err
	}
	return header, border, nil
}

func fillStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
}

func applyWidths(f *excelize.File, sheet string, widths []int) {
	for c, w := range widths {
		width := w + 2
		if width > maxColWidth {
			width = maxColWidth
		}
		col, _ := excelize.ColumnNumberToName(c + 1)
		_ = f.SetColWidth(sheet, col, col, float64(width))
	}
}

func cellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}
