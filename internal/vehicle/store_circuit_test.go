package vehicle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/circuit"
	"platecheck/pkg/platform/sentinel"
)

// =============================================================================
// Circuit Remote Store Test Suite
// =============================================================================

type flakyRemote struct {
	err   error
	calls int
}

func (f *flakyRemote) LoadVehicles(context.Context) ([]domain.VehicleRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *flakyRemote) SaveVehicles(context.Context, []domain.VehicleRecord) error {
	f.calls++
	return f.err
}

type CircuitStoreSuite struct {
	suite.Suite
	remote *flakyRemote
	store  *CircuitRemoteStore
	ctx    context.Context
}

func TestCircuitStoreSuite(t *testing.T) {
	suite.Run(t, new(CircuitStoreSuite))
}

func (s *CircuitStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.remote = &flakyRemote{}
	breaker := circuit.New("remote", circuit.WithFailureThreshold(2))
	s.store = NewCircuitRemoteStore(s.remote, breaker, slog.New(slog.DiscardHandler))
}

func (s *CircuitStoreSuite) TestPassesThroughWhileClosed() {
	s.Require().NoError(s.store.SaveVehicles(s.ctx, nil))
	_, err := s.store.LoadVehicles(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, s.remote.calls)
}

func (s *CircuitStoreSuite) TestFailsFastOnceOpen() {
	s.remote.err = errors.New("connection refused")

	s.Error(s.store.SaveVehicles(s.ctx, nil))
	s.Error(s.store.SaveVehicles(s.ctx, nil))
	s.Equal(2, s.remote.calls)

	// Breaker is open now; the backend is no longer hit.
	err := s.store.SaveVehicles(s.ctx, nil)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	_, err = s.store.LoadVehicles(s.ctx)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(2, s.remote.calls)
}

func (s *CircuitStoreSuite) TestRecoversAfterCooldown() {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("remote",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return clock }),
	)
	store := NewCircuitRemoteStore(s.remote, breaker, slog.New(slog.DiscardHandler))

	s.remote.err = errors.New("connection refused")
	s.Error(store.SaveVehicles(s.ctx, nil))
	s.ErrorIs(store.SaveVehicles(s.ctx, nil), sentinel.ErrUnavailable)
	s.Equal(1, s.remote.calls)

	// The backend recovers; once the cooldown elapses a retried flush is
	// admitted as the trial call and closes the breaker again.
	s.remote.err = nil
	clock = clock.Add(time.Minute)
	s.NoError(store.SaveVehicles(s.ctx, nil))
	s.NoError(store.SaveVehicles(s.ctx, nil))
	s.Equal(3, s.remote.calls)
	s.False(breaker.IsOpen())
}

func (s *CircuitStoreSuite) TestRecoversAfterReset() {
	s.remote.err = errors.New("connection refused")
	s.Error(s.store.SaveVehicles(s.ctx, nil))
	s.Error(s.store.SaveVehicles(s.ctx, nil))

	s.remote.err = nil
	s.store.breaker.Reset()
	s.NoError(s.store.SaveVehicles(s.ctx, nil))
}
