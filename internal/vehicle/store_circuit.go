package vehicle

import (
	"context"
	"fmt"
	"log/slog"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/circuit"
	"platecheck/pkg/platform/sentinel"
)

// CircuitRemoteStore wraps a RemoteStore with a circuit breaker. While the
// breaker is open, loads and flushes fail fast with ErrUnavailable instead of
// waiting out timeouts against a dead backend; the in-memory working set keeps
// serving lookups either way. The breaker admits a trial call per cooldown, so
// a caller retrying a failed flush eventually reaches the recovered backend.
type CircuitRemoteStore struct {
	inner   RemoteStore
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewCircuitRemoteStore(inner RemoteStore, breaker *circuit.Breaker, logger *slog.Logger) *CircuitRemoteStore {
	return &CircuitRemoteStore{inner: inner, breaker: breaker, logger: logger}
}

func (s *CircuitRemoteStore) LoadVehicles(ctx context.Context) ([]domain.VehicleRecord, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("load vehicles: circuit %s open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}
	records, err := s.inner.LoadVehicles(ctx)
	s.record(ctx, err)
	return records, err
}

func (s *CircuitRemoteStore) SaveVehicles(ctx context.Context, records []domain.VehicleRecord) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("save vehicles: circuit %s open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}
	err := s.inner.SaveVehicles(ctx, records)
	s.record(ctx, err)
	return err
}

func (s *CircuitRemoteStore) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "remote store circuit closed", "circuit", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "remote store circuit opened", "circuit", s.breaker.Name(), "error", err)
	}
}
