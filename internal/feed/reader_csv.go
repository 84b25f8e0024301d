package feed

import (
	"encoding/csv"
	"io"

	dErrors "platecheck/pkg/domain-errors"
)

// CSVReader parses comma-separated uploads beneath the same boundary as the
// spreadsheet reader.
type CSVReader struct{}

func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (c *CSVReader) Read(r io.Reader, skipRows int) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are a normalizer concern, not a parse error

	cells, err := cr.ReadAll()
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnreadable, "parse csv", err)
	}
	return rowsFromCells(cells, skipRows), nil
}
