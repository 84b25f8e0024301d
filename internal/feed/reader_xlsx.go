package feed

import (
	"io"

	"github.com/xuri/excelize/v2"

	dErrors "platecheck/pkg/domain-errors"
)

// XLSXReader parses spreadsheet uploads. Only the first sheet is read; that is
// the shape every source feed ships in.
type XLSXReader struct{}

func NewXLSXReader() *XLSXReader {
	return &XLSXReader{}
}

func (x *XLSXReader) Read(r io.Reader, skipRows int) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnreadable, "open spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, dErrors.New(dErrors.CodeUnreadable, "spreadsheet has no sheets")
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnreadable, "read sheet rows", err)
	}
	return rowsFromCells(cells, skipRows), nil
}
