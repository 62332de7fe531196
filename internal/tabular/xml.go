package tabular

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/tablemorph/tablemorph/internal/common"
)

// loadXML flattens a record-oriented XML document: each child of the root is
// one row, and each of its child elements is a column. The returned grid has
// the union of column names as its first row.
func (l *Loader) loadXML() (Grid, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	decoded, enc, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	l.encoding = enc

	dec := xml.NewDecoder(bytes.NewReader(decoded))
	var (
		columns []string
		colIdx  = map[string]int{}
		records []map[string]string
		depth   int
		field   string
		value   bytes.Buffer
		current map[string]string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				current = map[string]string{}
			case 3:
				field = t.Name.Local
				value.Reset()
			}
		case xml.CharData:
			if depth == 3 {
				value.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				if _, ok := colIdx[field]; !ok {
					colIdx[field] = len(columns)
					columns = append(columns, field)
				}
				current[field] = value.String()
			case 2:
				if current != nil {
					records = append(records, current)
					current = nil
				}
			}
			depth--
		}
	}
	if len(records) == 0 {
		return nil, common.NewAppError("EMPTY_FILE", "xml document has no record elements", common.ErrInvalidInput)
	}

	grid := make(Grid, 0, len(records)+1)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	grid = append(grid, header)
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, c := range columns {
			if v, ok := rec[c]; ok {
				row[i] = normalizeCell(v)
			}
		}
		grid = append(grid, row)
	}
	l.logger.Debug("loader.xml_loaded", "path", l.path, "encoding", enc, "rows", len(grid)-1, "cols", len(columns))
	return grid, nil
}
