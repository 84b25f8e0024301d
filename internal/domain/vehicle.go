package domain

import (
	"strings"
	"time"
)

// SourceKind identifies which feed a fragment came from. Each kind owns a
// disjoint slice of the merged record, so fragments from different kinds can
// never conflict.
type SourceKind string

const (
	SourceDiveDeep SourceKind = "dive_deep"
	SourceVinAudit SourceKind = "vin_audit"
	SourceGrounded SourceKind = "grounded"
)

// ParseSourceKind maps the external feed tag to a SourceKind.
func ParseSourceKind(raw string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dive_deep", "divedeep":
		return SourceDiveDeep, true
	case "vin_audit", "vinaudit":
		return SourceVinAudit, true
	case "grounded":
		return SourceGrounded, true
	}
	return "", false
}

// CheckStatus is the per-source safety check result.
type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusFail    CheckStatus = "fail"
	StatusUnknown CheckStatus = "unknown"
)

// GroundedStatus reports whether the vehicle is currently grounded.
type GroundedStatus string

const (
	GroundedYes     GroundedStatus = "yes"
	GroundedNo      GroundedStatus = "no"
	GroundedUnknown GroundedStatus = "unknown"
)

// VehicleFragment is one feed's partial view of a vehicle. Fragments are
// created during normalization, consumed by a single merge pass, and discarded.
type VehicleFragment struct {
	Plate      string // already normalized
	Source     SourceKind
	Fields     map[string]string
	RowOrdinal int
}

// VehicleRecord is the canonical merged entity: exactly one per normalized
// plate. Statuses default to Unknown until a fragment of the owning source
// kind arrives. Owned by the vehicle store; only the reconciler mutates it.
type VehicleRecord struct {
	Plate          string
	DisplayName    string
	DiveDeepStatus CheckStatus
	VinAuditStatus CheckStatus
	GroundedStatus GroundedStatus
	ExtraInfo      map[string]string
	LastMergedAt   time.Time
}

// NewVehicleRecord returns a record with all statuses Unknown.
func NewVehicleRecord(plate string) VehicleRecord {
	return VehicleRecord{
		Plate:          plate,
		DiveDeepStatus: StatusUnknown,
		VinAuditStatus: StatusUnknown,
		GroundedStatus: GroundedUnknown,
	}
}

// ShouldPass computes the advisory combined signal shown to the auditor. It is
// UI guidance only: the workflow layer never blocks an approval on it.
func (r VehicleRecord) ShouldPass() bool {
	return r.DiveDeepStatus == StatusPass &&
		r.VinAuditStatus == StatusPass &&
		r.GroundedStatus == GroundedNo
}

// NormalizePlate canonicalizes a license plate for use as the join key: trim,
// strip all internal whitespace, uppercase. An empty result means the input
// carried no usable plate.
func NormalizePlate(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// Canonical field names produced by feed normalization.
const (
	FieldPlate  = "plate"
	FieldName   = "name"
	FieldStatus = "status"
)
