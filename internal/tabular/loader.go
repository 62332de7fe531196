package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tablemorph/tablemorph/internal/common"
)

// Grid is an untyped cell grid as read from the file, before any header
// interpretation. Cells are nil or string.
type Grid [][]any

// Region is an inclusive cell range inside a grid.
type Region struct {
	StartRow int `json:"start_row"`
	EndRow   int `json:"end_row"`
	StartCol int `json:"start_col"`
	EndCol   int `json:"end_col"`
}

// SupportedExtensions lists the file formats the loader accepts.
var SupportedExtensions = []string{".xlsx", ".xls", ".xlsm", ".csv", ".xml"}

// Values treated as missing regardless of format.
var naValues = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"none": {},
}

// Loader reads tabular files into grids and tables.
type Loader struct {
	path     string
	ext      string
	encoding string
	logger   *slog.Logger
}

// NewLoader validates the file extension and returns a loader for path.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, e := range SupportedExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return nil, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported file extension %q", ext), common.ErrInvalidInput)
	}
	return &Loader{path: path, ext: ext, logger: logger}, nil
}

// Encoding reports the text encoding detected by the last load. Empty before
// any load and for workbook formats, which carry no text encoding.
func (l *Loader) Encoding() string {
	return l.encoding
}

// IsSpreadsheet reports whether the file is a multi-sheet workbook format.
func (l *Loader) IsSpreadsheet() bool {
	return l.ext == ".xlsx" || l.ext == ".xls" || l.ext == ".xlsm"
}

// SheetNames returns the workbook's sheet list. Single-table formats report
// one pseudo-sheet named after the file.
func (l *Loader) SheetNames() ([]string, error) {
	if !l.IsSpreadsheet() {
		base := strings.TrimSuffix(filepath.Base(l.path), l.ext)
		return []string{base}, nil
	}
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("loader.workbook_close_error", "path", l.path, "error", cerr)
		}
	}()
	return f.GetSheetList(), nil
}

// LoadRaw reads the whole sheet as an uninterpreted grid. An empty sheet name
// selects the first sheet.
func (l *Loader) LoadRaw(sheet string) (Grid, error) {
	switch l.ext {
	case ".csv":
		return l.loadCSV()
	case ".xml":
		return l.loadXML()
	default:
		return l.loadWorkbook(sheet)
	}
}

// LoadFull reads the sheet and interprets row headerRow as the header.
func (l *Loader) LoadFull(sheet string, headerRow int) (*Table, error) {
	grid, err := l.LoadRaw(sheet)
	if err != nil {
		return nil, err
	}
	if headerRow >= len(grid) {
		return nil, common.NewAppError("EMPTY_FILE",
			fmt.Sprintf("header row %d beyond grid of %d rows", headerRow, len(grid)), common.ErrInvalidInput)
	}
	return gridToTable(grid[headerRow], grid[headerRow+1:]), nil
}

// LoadSample reads at most n data rows with the first row as the header.
func (l *Loader) LoadSample(sheet string, n int) (*Table, error) {
	t, err := l.LoadFull(sheet, 0)
	if err != nil {
		return nil, err
	}
	return t.Head(n), nil
}

// ExtractTable cuts a detected region out of a grid. headerOffset is the row
// offset of the header inside the region; data starts on the next row.
func ExtractTable(grid Grid, region Region, headerOffset int) (*Table, error) {
	if region.StartRow < 0 || region.EndRow >= len(grid) || region.StartRow > region.EndRow {
		return nil, common.NewAppError("BAD_REGION",
			fmt.Sprintf("region rows [%d,%d] out of grid of %d rows", region.StartRow, region.EndRow, len(grid)),
			common.ErrInvalidInput)
	}
	headerIdx := region.StartRow + headerOffset
	if headerIdx > region.EndRow {
		return nil, common.NewAppError("BAD_REGION", "header offset beyond region", common.ErrInvalidInput)
	}
	slice := func(row []any) []any {
		out := make([]any, 0, region.EndCol-region.StartCol+1)
		for c := region.StartCol; c <= region.EndCol; c++ {
			if c < len(row) {
				out = append(out, row[c])
			} else {
				out = append(out, nil)
			}
		}
		return out
	}
	header := slice(grid[headerIdx])
	var rows [][]any
	for r := headerIdx + 1; r <= region.EndRow; r++ {
		rows = append(rows, slice(grid[r]))
	}
	return gridToTable(header, rows), nil
}

// gridToTable synthesizes Column_N names for blank header cells and drops
// rows with no values at all.
func gridToTable(header []any, data [][]any) *Table {
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(CellString(h))
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		columns[i] = name
	}
	var rows [][]any
	for _, r := range data {
		empty := true
		for _, v := range r {
			if !IsEmpty(v) {
				empty = false
				break
			}
		}
		if !empty {
			rows = append(rows, r)
		}
	}
	return NewTable(columns, rows)
}

func (l *Loader) loadWorkbook(sheet string) (Grid, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("loader.workbook_close_error", "path", l.path, "error", cerr)
		}
	}()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, common.NewAppError("EMPTY_FILE", "workbook has no sheets", common.ErrInvalidInput)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	grid := make(Grid, len(rows))
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		row := make([]any, width)
		for j := 0; j < width; j++ {
			if j < len(r) {
				row[j] = normalizeCell(r[j])
			}
		}
		grid[i] = row
	}
	l.logger.Debug("loader.workbook_loaded", "path", l.path, "sheet", sheet, "rows", len(grid), "cols", width)
	return grid, nil
}

func (l *Loader) loadCSV() (Grid, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	decoded, enc, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	l.encoding = enc
	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}
	grid := make(Grid, len(records))
	for i, rec := range records {
		row := make([]any, width)
		for j := 0; j < width; j++ {
			if j < len(rec) {
				row[j] = normalizeCell(rec[j])
			}
		}
		grid[i] = row
	}
	l.logger.Debug("loader.csv_loaded", "path", l.path, "encoding", enc, "rows", len(grid), "cols", width)
	return grid, nil
}

// decodeText sniffs a BOM to pick the decoder, falling back to UTF-8 and then
// Windows-1252 for legacy exports.
func decodeText(data []byte) ([]byte, string, error) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE,
		len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, "", err
		}
		return out, "utf-16", nil
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return data[3:], "utf-8-sig", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, "", err
		}
		return out, "windows-1252", nil
	}
}

func normalizeCell(s string) any {
	if _, na := naValues[strings.TrimSpace(s)]; na {
		return nil
	}
	return s
}
