package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// SpreadsheetContentType is the response content type for xlsx downloads.
const SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headings = []string{
	"Plate", "Vehicle", "Result", "Problem", "Auditor",
	"Decided At", "Dive Deep", "VIN Audit", "Grounded",
}

// WriteXLSX renders projected rows as a spreadsheet.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("heading cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("set heading: %w", err)
		}
	}

	for i, row := range rows {
		values := []any{
			row.Plate,
			row.VehicleName,
			string(row.Result),
			row.Problem,
			row.Auditor,
			row.DecidedAt.UTC().Format(time.RFC3339),
			string(row.DiveDeepStatus),
			string(row.VinAuditStatus),
			string(row.GroundedStatus),
		}
		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("set cell: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	return nil
}
