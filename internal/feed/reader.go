// Package feed turns raw tabular uploads into vehicle fragments. The tabular
// readers are the ingestion boundary; the normalizer is the first stage of the
// reconciliation pipeline.
package feed

import (
	"io"
	"path"
	"strings"

	dErrors "platecheck/pkg/domain-errors"
)

// Row is one parsed feed row, keyed by the column names of its header row.
type Row map[string]string

// TabularReader is the capability interface for the file-format edge. The core
// only ever consumes the post-parse row sequence; byte-level parsing details
// stay behind this boundary.
type TabularReader interface {
	// Read parses the stream into rows. skipRows leading rows are discarded
	// before the header row is taken.
	Read(r io.Reader, skipRows int) ([]Row, error)
}

// ReaderFor selects a TabularReader by file name extension.
func ReaderFor(filename string) (TabularReader, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return NewXLSXReader(), nil
	case ".csv":
		return NewCSVReader(), nil
	default:
		return nil, dErrors.New(dErrors.CodeUnsupported, "unsupported feed format: "+path.Ext(filename))
	}
}

// rowsFromCells converts a header row plus data rows into Rows. Short data
// rows are padded with empty cells; columns beyond the header are ignored.
func rowsFromCells(cells [][]string, skipRows int) []Row {
	if skipRows < 0 {
		skipRows = 0
	}
	if len(cells) <= skipRows {
		return nil
	}
	cells = cells[skipRows:]

	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(cells)-1)
	for _, raw := range cells[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(raw) {
				row[col] = strings.TrimSpace(raw[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
