// Package audit drives the per-lookup workflow from plate selection to a
// persisted decision. A session produces at most one outcome; a new audit
// requires a new session.
package audit

import (
	"strings"
	"sync"
	"time"

	"platecheck/internal/domain"
	dErrors "platecheck/pkg/domain-errors"
	"platecheck/pkg/platform/sentinel"
)

// State is the session's position in the audit workflow.
type State string

const (
	StateIdle                 State = "idle"
	StateSelected             State = "selected"
	StateBlockedPendingReason State = "blocked_pending_reason"
	StateDecided              State = "decided"
	StateCancelled            State = "cancelled"
)

// terminal states admit no further transitions.
func (s State) terminal() bool {
	return s == StateDecided || s == StateCancelled
}

// Session is the ephemeral workflow state for one audit. It holds a read-only
// copy of the looked-up record; it never mutates the vehicle store.
type Session struct {
	ID              string
	AuditorIdentity string

	// mu serializes transitions: handlers may drive the same session from
	// concurrent requests (an auditor double-clicking approve), and the
	// exactly-once outcome guarantee lives in the check-then-transition below.
	mu           sync.Mutex
	state        State
	vehicle      domain.VehicleRecord
	draftProblem string
}

// NewSession starts a session in Idle with no vehicle selected.
func NewSession(id, auditorIdentity string) *Session {
	return &Session{ID: id, AuditorIdentity: auditorIdentity, state: StateIdle}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Vehicle returns the selected record. Zero value before Select succeeds.
func (s *Session) Vehicle() domain.VehicleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle
}

// Select attaches a looked-up vehicle. Only valid from Idle; a failed lookup
// is handled by the service layer and leaves the session Idle.
func (s *Session) Select(record domain.VehicleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return sentinel.ErrInvalidState
	}
	s.vehicle = record
	s.state = StateSelected
	return nil
}

// Approve decides the audit as Pass. Always permitted from Selected: the
// combined vehicle status is advisory and the auditor retains final authority.
func (s *Session) Approve(now time.Time, qrPayload string) (domain.AuditOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSelected {
		return domain.AuditOutcome{}, sentinel.ErrInvalidState
	}
	s.state = StateDecided
	return domain.AuditOutcome{
		Plate:               s.vehicle.Plate,
		VehicleNameSnapshot: s.vehicle.DisplayName,
		Timestamp:           now,
		Result:              domain.ResultPass,
		AuditorIdentity:     s.AuditorIdentity,
		QRPayload:           qrPayload,
	}, nil
}

// Block moves the session to collecting a problem description.
func (s *Session) Block() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSelected {
		return sentinel.ErrInvalidState
	}
	s.state = StateBlockedPendingReason
	return nil
}

// SubmitProblem decides the audit as Blocked. An empty description (after
// trimming) is rejected without a state change.
func (s *Session) SubmitProblem(text string, now time.Time) (domain.AuditOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBlockedPendingReason {
		return domain.AuditOutcome{}, sentinel.ErrInvalidState
	}
	problem := strings.TrimSpace(text)
	if problem == "" {
		return domain.AuditOutcome{}, dErrors.New(dErrors.CodeEmptyProblem, "problem description is required")
	}
	s.draftProblem = problem
	s.state = StateDecided
	return domain.AuditOutcome{
		Plate:               s.vehicle.Plate,
		VehicleNameSnapshot: s.vehicle.DisplayName,
		Timestamp:           now,
		Result:              domain.ResultBlocked,
		ProblemDescription:  problem,
		AuditorIdentity:     s.AuditorIdentity,
	}, nil
}

// Cancel abandons the session from any non-terminal state with no persisted
// side effects.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return sentinel.ErrInvalidState
	}
	s.state = StateCancelled
	return nil
}

// Unwind reverts a decided transition whose outcome could not be persisted,
// so the caller can retry. Only the service uses this.
func (s *Session) unwind(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
}
