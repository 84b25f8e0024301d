package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"platecheck/internal/domain"
	"platecheck/internal/platform/metrics"
	"platecheck/internal/vehicle"
	"platecheck/pkg/platform/sentinel"
)

// Service runs audit sessions against the vehicle store and persists their
// outcomes. Sessions live in memory from lookup to decision or cancellation;
// the outcome log is the durable record.
type Service struct {
	vehicles  vehicle.Store
	outcomes  OutcomeStore
	encoder   QRPayloadEncoder
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type ServiceOption func(*Service)

// WithPublisher attaches an outcome event publisher.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMetrics attaches the metrics collector.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(vehicles vehicle.Store, outcomes OutcomeStore, encoder QRPayloadEncoder, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		vehicles:  vehicles,
		outcomes:  outcomes,
		encoder:   encoder,
		publisher: NopPublisher{},
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin looks up the plate and opens a Selected session. sentinel.ErrNotFound
// surfaces to the caller with no session created, mirroring a failed select
// that leaves the workflow Idle.
func (s *Service) Begin(ctx context.Context, rawPlate, auditorIdentity string) (*Session, error) {
	record, err := s.vehicles.Lookup(ctx, rawPlate)
	if err != nil {
		return nil, fmt.Errorf("begin audit for %q: %w", rawPlate, err)
	}

	session := NewSession(uuid.NewString(), auditorIdentity)
	if err := session.Select(record); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "audit session started",
		"session_id", session.ID,
		"plate", record.Plate,
		"auditor", auditorIdentity,
	)
	return session, nil
}

// Get returns a live session by ID.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, sentinel.ErrNotFound
}

// Approve decides the session as Pass and persists the outcome. If the append
// fails the session reverts to Selected so the auditor can retry; no outcome
// is recorded.
func (s *Service) Approve(ctx context.Context, session *Session) (domain.AuditOutcome, error) {
	decidedAt := s.now()

	qrPayload, err := s.encoder.Encode(session.Vehicle(), session.AuditorIdentity, decidedAt)
	if err != nil {
		return domain.AuditOutcome{}, fmt.Errorf("encode qr payload: %w", err)
	}

	outcome, err := session.Approve(decidedAt, qrPayload)
	if err != nil {
		return domain.AuditOutcome{}, err
	}
	return s.persist(ctx, session, outcome, StateSelected)
}

// Block moves the session to collecting a problem description.
func (s *Service) Block(_ context.Context, session *Session) error {
	return session.Block()
}

// SubmitProblem decides the session as Blocked with the given reason.
func (s *Service) SubmitProblem(ctx context.Context, session *Session, text string) (domain.AuditOutcome, error) {
	outcome, err := session.SubmitProblem(text, s.now())
	if err != nil {
		return domain.AuditOutcome{}, err
	}
	return s.persist(ctx, session, outcome, StateBlockedPendingReason)
}

// Cancel abandons the session and forgets it. Nothing is persisted.
func (s *Service) Cancel(ctx context.Context, session *Session) error {
	if err := session.Cancel(); err != nil {
		return err
	}
	s.forget(session.ID)
	s.logger.InfoContext(ctx, "audit session cancelled", "session_id", session.ID)
	return nil
}

// persist appends the outcome and finalizes the session. On append failure the
// decided transition is unwound to revertTo: the in-memory workflow is never
// corrupted by a failed flush, and the caller sees a persistence error
// distinct from any workflow error.
func (s *Service) persist(ctx context.Context, session *Session, outcome domain.AuditOutcome, revertTo State) (domain.AuditOutcome, error) {
	outcome.ID = uuid.NewString()

	if err := s.outcomes.Append(ctx, outcome); err != nil {
		session.unwind(revertTo)
		if s.metrics != nil {
			s.metrics.FlushFailures.Inc()
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return domain.AuditOutcome{}, err
		}
		return domain.AuditOutcome{}, fmt.Errorf("%w: append outcome: %w", sentinel.ErrUnavailable, err)
	}

	// The decided session stays registered so a duplicate decision attempt
	// surfaces ErrInvalidState instead of a lookup miss.
	s.publisher.Publish(ctx, outcome)
	if s.metrics != nil {
		s.metrics.OutcomesDecided.WithLabelValues(string(outcome.Result)).Inc()
	}

	s.logger.InfoContext(ctx, "audit decided",
		"session_id", session.ID,
		"plate", outcome.Plate,
		"result", outcome.Result,
	)
	return outcome, nil
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// History exposes the outcome log for reporting.
func (s *Service) History(ctx context.Context, filter domain.OutcomeFilter) ([]domain.AuditOutcome, error) {
	return s.outcomes.List(ctx, filter)
}
