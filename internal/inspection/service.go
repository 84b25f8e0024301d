// Package inspection is the application layer: it owns the working state one
// auditor session operates on (vehicle store, reconciler, audit workflow) and
// exposes the operations the transport layer calls. No implicit globals; every
// operation takes its dependencies from this explicit service object.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"platecheck/internal/audit"
	"platecheck/internal/domain"
	"platecheck/internal/feed"
	"platecheck/internal/platform/metrics"
	"platecheck/internal/reconcile"
	"platecheck/internal/report"
	"platecheck/internal/vehicle"
	"platecheck/pkg/platform/sentinel"
)

// Upload is one raw feed handed to NormalizeAndMerge.
type Upload struct {
	Source   domain.SourceKind
	Filename string
	SkipRows int
	Content  io.Reader
}

// Service wires the reconciliation pipeline and the audit workflow.
type Service struct {
	store      *vehicle.MemoryStore
	remote     vehicle.RemoteStore // nil when running without remote persistence
	reconciler *reconcile.Reconciler
	audits     *audit.Service
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

// WithRemote attaches the remote persistence boundary.
func WithRemote(remote vehicle.RemoteStore) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// WithMetrics attaches the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store *vehicle.MemoryStore, reconciler *reconcile.Reconciler, audits *audit.Service, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		reconciler: reconciler,
		audits:     audits,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds the in-memory store from the remote boundary.
func (s *Service) Load(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	records, err := s.remote.LoadVehicles(ctx)
	if err != nil {
		return fmt.Errorf("load vehicles: %w", err)
	}
	s.store.Replace(records)
	s.logger.InfoContext(ctx, "vehicle store loaded", "records", len(records))
	return nil
}

// NormalizeAndMerge parses and normalizes every upload in the batch, then
// applies one merge pass. Normalization runs per-upload concurrently, but the
// store is not touched until the whole batch normalized: a failed or cancelled
// upload leaves the store unmodified.
func (s *Service) NormalizeAndMerge(ctx context.Context, uploads []Upload) ([]feed.Warning, error) {
	fragmentsPerUpload := make([][]domain.VehicleFragment, len(uploads))
	warningsPerUpload := make([][]feed.Warning, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reader, err := feed.ReaderFor(upload.Filename)
			if err != nil {
				return err
			}
			rows, err := reader.Read(upload.Content, upload.SkipRows)
			if err != nil {
				return fmt.Errorf("read %s feed: %w", upload.Source, err)
			}
			fragments, warnings := feed.Normalize(rows, upload.Source)
			fragmentsPerUpload[i] = fragments
			warningsPerUpload[i] = warnings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var batch []domain.VehicleFragment
	var warnings []feed.Warning
	for i := range uploads {
		batch = append(batch, fragmentsPerUpload[i]...)
		warnings = append(warnings, warningsPerUpload[i]...)
		if s.metrics != nil {
			s.metrics.FeedRowsIngested.WithLabelValues(string(uploads[i].Source)).Add(float64(len(fragmentsPerUpload[i])))
			s.metrics.FeedRowsSkipped.WithLabelValues(string(uploads[i].Source)).Add(float64(len(warningsPerUpload[i])))
		}
	}

	changed, err := s.reconciler.Merge(ctx, s.store, batch)
	if err != nil {
		return warnings, fmt.Errorf("merge batch: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsMerged.Add(float64(changed))
	}

	s.logger.InfoContext(ctx, "feed batch merged",
		"uploads", len(uploads),
		"fragments", len(batch),
		"changed", changed,
		"warnings", len(warnings),
	)
	return warnings, nil
}

// Flush saves the whole working set to the remote boundary. A failed flush
// leaves the in-memory store intact; the caller may retry or discard.
func (s *Service) Flush(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	records := make([]domain.VehicleRecord, 0, s.store.Len())
	for record := range s.store.All() {
		records = append(records, record)
	}
	if err := s.remote.SaveVehicles(ctx, records); err != nil {
		if s.metrics != nil {
			s.metrics.FlushFailures.Inc()
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: save vehicles: %w", sentinel.ErrUnavailable, err)
	}
	s.logger.InfoContext(ctx, "vehicle store flushed", "records", len(records))
	return nil
}

// Lookup finds a merged record by raw user-typed plate.
func (s *Service) Lookup(ctx context.Context, rawPlate string) (domain.VehicleRecord, error) {
	return s.store.Lookup(ctx, rawPlate)
}

// BeginAudit opens an audit session for the plate.
func (s *Service) BeginAudit(ctx context.Context, rawPlate, auditorIdentity string) (*audit.Session, error) {
	return s.audits.Begin(ctx, rawPlate, auditorIdentity)
}

// AuditSession returns a live session by ID.
func (s *Service) AuditSession(id string) (*audit.Session, error) {
	return s.audits.Get(id)
}

// Approve, Block, SubmitProblem and CancelAudit drive the session workflow.
func (s *Service) Approve(ctx context.Context, session *audit.Session) (domain.AuditOutcome, error) {
	return s.audits.Approve(ctx, session)
}

func (s *Service) Block(ctx context.Context, session *audit.Session) error {
	return s.audits.Block(ctx, session)
}

func (s *Service) SubmitProblem(ctx context.Context, session *audit.Session, text string) (domain.AuditOutcome, error) {
	return s.audits.SubmitProblem(ctx, session, text)
}

func (s *Service) CancelAudit(ctx context.Context, session *audit.Session) error {
	return s.audits.Cancel(ctx, session)
}

// Report projects the audit history through the filter.
func (s *Service) Report(ctx context.Context, filter domain.OutcomeFilter) ([]report.Row, error) {
	outcomes, err := s.audits.History(ctx, filter)
	if err != nil {
		return nil, err
	}
	return report.Project(ctx, s.store, outcomes, filter), nil
}

// ExportXLSX writes the filtered report as a spreadsheet.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer, filter domain.OutcomeFilter) error {
	rows, err := s.Report(ctx, filter)
	if err != nil {
		return err
	}
	return report.WriteXLSX(w, rows)
}
