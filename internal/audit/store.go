package audit

import (
	"context"
	"sync"

	"platecheck/internal/domain"
)

// OutcomeStore is the audit history log. Append-only: outcomes are never
// edited or deleted, corrections are new outcomes.
type OutcomeStore interface {
	Append(ctx context.Context, outcome domain.AuditOutcome) error
	// List returns outcomes matching the filter in insertion order.
	List(ctx context.Context, filter domain.OutcomeFilter) ([]domain.AuditOutcome, error)
}

// MemoryOutcomeStore keeps the history in memory, preserving insertion order
// for the exporter's tie-break rule.
type MemoryOutcomeStore struct {
	mu       sync.RWMutex
	outcomes []domain.AuditOutcome
}

func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{}
}

func (s *MemoryOutcomeStore) Append(_ context.Context, outcome domain.AuditOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *MemoryOutcomeStore) List(_ context.Context, filter domain.OutcomeFilter) ([]domain.AuditOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]domain.AuditOutcome, 0, len(s.outcomes))
	for _, outcome := range s.outcomes {
		if filter.Matches(outcome) {
			matched = append(matched, outcome)
		}
	}
	return matched, nil
}
