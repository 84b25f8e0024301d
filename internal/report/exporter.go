// Package report projects the vehicle store and audit history into
// export-ready tabular views. Projection is pure: it never mutates either
// input.
package report

import (
	"context"
	"sort"
	"time"

	"platecheck/internal/domain"
	"platecheck/internal/vehicle"
)

// Row is one export line: the decision plus the current merged view of the
// vehicle it was made about. Snapshot fields come from the outcome, status
// fields from the store.
type Row struct {
	Plate          string
	VehicleName    string
	Result         domain.AuditResult
	Problem        string
	Auditor        string
	DecidedAt      time.Time
	DiveDeepStatus domain.CheckStatus
	VinAuditStatus domain.CheckStatus
	GroundedStatus domain.GroundedStatus
}

// Project filters the outcome history and joins each decision with its vehicle
// record. Rows are ordered by decision timestamp ascending; equal timestamps
// keep insertion order. The report is a record of decisions made, not of raw
// vehicle status, so the filter runs over outcomes.
func Project(ctx context.Context, store vehicle.Store, outcomes []domain.AuditOutcome, filter domain.OutcomeFilter) []Row {
	rows := make([]Row, 0, len(outcomes))
	for _, outcome := range outcomes {
		if !filter.Matches(outcome) {
			continue
		}
		row := Row{
			Plate:       outcome.Plate,
			VehicleName: outcome.VehicleNameSnapshot,
			Result:      outcome.Result,
			Problem:     outcome.ProblemDescription,
			Auditor:     outcome.AuditorIdentity,
			DecidedAt:   outcome.Timestamp,
			// Records are never removed from the store, but the join stays
			// defensive: missing statuses render as Unknown.
			DiveDeepStatus: domain.StatusUnknown,
			VinAuditStatus: domain.StatusUnknown,
			GroundedStatus: domain.GroundedUnknown,
		}
		if record, err := store.Lookup(ctx, outcome.Plate); err == nil {
			row.DiveDeepStatus = record.DiveDeepStatus
			row.VinAuditStatus = record.VinAuditStatus
			row.GroundedStatus = record.GroundedStatus
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DecidedAt.Before(rows[j].DecidedAt)
	})
	return rows
}
