package feed

import (
	"fmt"
	"strings"

	"platecheck/internal/domain"
)

// columnMap fixes how each feed's headers map to canonical field names. This
// table is the externally visible feed contract: changing it breaks uploads
// from existing source systems.
type columnMap struct {
	plate  string // required
	name   string
	status string
}

var feedColumns = map[domain.SourceKind]columnMap{
	domain.SourceDiveDeep: {plate: "License Plate", name: "Vehicle", status: "Dive Deep Status"},
	domain.SourceVinAudit: {plate: "Plate", name: "Vehicle Name", status: "VIN Audit Result"},
	domain.SourceGrounded: {plate: "License Plate", name: "Vehicle", status: "Grounded"},
}

// Warning reports a row that was skipped during normalization. Malformed rows
// degrade the upload, they never abort it.
type Warning struct {
	RowOrdinal int
	Reason     string
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d skipped: %s", w.RowOrdinal, w.Reason)
}

// Normalize converts parsed feed rows into vehicle fragments keyed by
// normalized plate. Order-preserving relative to the input; rows without a
// usable plate or missing their feed's required column are dropped with a
// warning.
func Normalize(rows []Row, kind domain.SourceKind) ([]domain.VehicleFragment, []Warning) {
	cols, ok := feedColumns[kind]
	if !ok {
		return nil, []Warning{{RowOrdinal: 0, Reason: "unknown source kind " + string(kind)}}
	}

	fragments := make([]domain.VehicleFragment, 0, len(rows))
	var warnings []Warning

	for i, row := range rows {
		raw, present := row[cols.plate]
		if !present {
			warnings = append(warnings, Warning{RowOrdinal: i, Reason: "missing required column " + quoteCol(cols.plate)})
			continue
		}
		plate := domain.NormalizePlate(raw)
		if plate == "" {
			warnings = append(warnings, Warning{RowOrdinal: i, Reason: "empty plate"})
			continue
		}

		fields := map[string]string{
			domain.FieldPlate:  plate,
			domain.FieldStatus: row[cols.status],
		}
		if cols.name != "" {
			fields[domain.FieldName] = strings.TrimSpace(row[cols.name])
		}
		if kind == domain.SourceGrounded {
			// Every unmapped Grounded column rides along as auxiliary info.
			for col, cell := range row {
				if col == cols.plate || col == cols.name || col == cols.status {
					continue
				}
				if cell == "" {
					continue
				}
				fields["extra:"+col] = cell
			}
		}

		fragments = append(fragments, domain.VehicleFragment{
			Plate:      plate,
			Source:     kind,
			Fields:     fields,
			RowOrdinal: i,
		})
	}

	return fragments, warnings
}

func quoteCol(col string) string {
	return `"` + col + `"`
}

// ParseCheckStatus maps a raw status cell to a CheckStatus. Unrecognized or
// empty cells are Unknown, never a guessed value.
func ParseCheckStatus(raw string) domain.CheckStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pass", "passed", "ok":
		return domain.StatusPass
	case "fail", "failed":
		return domain.StatusFail
	default:
		return domain.StatusUnknown
	}
}

// ParseGroundedStatus maps a raw grounded cell to a GroundedStatus.
func ParseGroundedStatus(raw string) domain.GroundedStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "grounded":
		return domain.GroundedYes
	case "no", "n", "false":
		return domain.GroundedNo
	default:
		return domain.GroundedUnknown
	}
}
