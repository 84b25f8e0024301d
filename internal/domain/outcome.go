package domain

import "time"

// AuditResult enumerates the terminal decisions an audit can reach.
type AuditResult string

const (
	ResultPass    AuditResult = "pass"
	ResultBlocked AuditResult = "blocked"
)

// AuditOutcome records one decision event. Outcomes are append-only: the core
// never edits or deletes them, corrections are new outcomes.
type AuditOutcome struct {
	ID                  string
	Plate               string
	VehicleNameSnapshot string // copy of DisplayName at decision time, not a live reference
	Timestamp           time.Time
	Result              AuditResult
	ProblemDescription  string // present iff Result == ResultBlocked
	AuditorIdentity     string
	QRPayload           string // present iff Result == ResultPass
}

// OutcomeFilter selects which decisions a history query or report covers.
type OutcomeFilter string

const (
	FilterAll         OutcomeFilter = "all"
	FilterPassedOnly  OutcomeFilter = "passed"
	FilterBlockedOnly OutcomeFilter = "blocked"
)

// ParseOutcomeFilter maps the external filter tag, defaulting to All for an
// empty value.
func ParseOutcomeFilter(raw string) (OutcomeFilter, bool) {
	switch raw {
	case "", "all":
		return FilterAll, true
	case "passed":
		return FilterPassedOnly, true
	case "blocked":
		return FilterBlockedOnly, true
	}
	return "", false
}

// Matches reports whether an outcome passes the filter.
func (f OutcomeFilter) Matches(o AuditOutcome) bool {
	switch f {
	case FilterPassedOnly:
		return o.Result == ResultPass
	case FilterBlockedOnly:
		return o.Result == ResultBlocked
	default:
		return true
	}
}
