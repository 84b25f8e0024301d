package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"platecheck/internal/domain"
	"platecheck/internal/vehicle"
)

// =============================================================================
// Reconciler Test Suite
// =============================================================================
// Justification for unit tests: merge precedence and idempotence are the
// system's central invariants; they are exercised here directly rather than
// through upload round-trips.

type ReconcilerSuite struct {
	suite.Suite
	store      *vehicle.MemoryStore
	reconciler *Reconciler
	ctx        context.Context
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.store = vehicle.NewMemoryStore()
	s.reconciler = New(WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	s.ctx = context.Background()
}

func fragment(plate string, kind domain.SourceKind, ordinal int, fields map[string]string) domain.VehicleFragment {
	if fields == nil {
		fields = map[string]string{}
	}
	fields[domain.FieldPlate] = plate
	return domain.VehicleFragment{Plate: plate, Source: kind, Fields: fields, RowOrdinal: ordinal}
}

func (s *ReconcilerSuite) snapshot() map[string]domain.VehicleRecord {
	records := make(map[string]domain.VehicleRecord)
	for record := range s.store.All() {
		records[record.Plate] = record
	}
	return records
}

func (s *ReconcilerSuite) TestThreeFeedMerge() {
	// DiveDeep and VinAudit disagree on plate spelling; normalization joins
	// them into one record.
	fragments := []domain.VehicleFragment{
		fragment("XYZ1", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
		fragment(domain.NormalizePlate("xyz1"), domain.SourceVinAudit, 0, map[string]string{domain.FieldStatus: "Fail"}),
	}
	_, err := s.reconciler.Merge(s.ctx, s.store, fragments)
	s.Require().NoError(err)

	record, err := s.store.Lookup(s.ctx, "XYZ1")
	s.Require().NoError(err)
	s.Equal("XYZ1", record.Plate)
	s.Equal(domain.StatusPass, record.DiveDeepStatus)
	s.Equal(domain.StatusFail, record.VinAuditStatus)
	s.Equal(domain.GroundedUnknown, record.GroundedStatus)
}

func (s *ReconcilerSuite) TestIdempotentMerge() {
	fragments := []domain.VehicleFragment{
		fragment("AB12", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass", domain.FieldName: "Van 7"}),
		fragment("AB12", domain.SourceGrounded, 0, map[string]string{domain.FieldStatus: "No", "extra:Depot": "North"}),
	}

	changed, err := s.reconciler.Merge(s.ctx, s.store, fragments)
	s.Require().NoError(err)
	s.Positive(changed)
	first := s.snapshot()

	changed, err = s.reconciler.Merge(s.ctx, s.store, fragments)
	s.Require().NoError(err)
	s.Zero(changed)
	s.Equal(first, s.snapshot())
}

func (s *ReconcilerSuite) TestDisjointFieldNonInterference() {
	_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
		fragment("CD34", domain.SourceVinAudit, 0, map[string]string{domain.FieldStatus: "Fail"}),
		fragment("CD34", domain.SourceGrounded, 0, map[string]string{domain.FieldStatus: "Yes"}),
	})
	s.Require().NoError(err)

	// A DiveDeep-only batch must not touch the other sources' fields.
	_, err = s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
		fragment("CD34", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
	})
	s.Require().NoError(err)

	record, err := s.store.Lookup(s.ctx, "CD34")
	s.Require().NoError(err)
	s.Equal(domain.StatusPass, record.DiveDeepStatus)
	s.Equal(domain.StatusFail, record.VinAuditStatus)
	s.Equal(domain.GroundedYes, record.GroundedStatus)
}

func (s *ReconcilerSuite) TestSameSourceLastWriteWins() {
	s.Run("higher ordinal wins", func() {
		_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("EF56", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
			fragment("EF56", domain.SourceDiveDeep, 1, map[string]string{domain.FieldStatus: "Fail"}),
		})
		s.Require().NoError(err)

		record, err := s.store.Lookup(s.ctx, "EF56")
		s.Require().NoError(err)
		s.Equal(domain.StatusFail, record.DiveDeepStatus)
	})

	s.Run("out-of-order arrival still honors ordinals", func() {
		_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("GH78", domain.SourceDiveDeep, 5, map[string]string{domain.FieldStatus: "Fail"}),
			fragment("GH78", domain.SourceDiveDeep, 2, map[string]string{domain.FieldStatus: "Pass"}),
		})
		s.Require().NoError(err)

		record, err := s.store.Lookup(s.ctx, "GH78")
		s.Require().NoError(err)
		s.Equal(domain.StatusFail, record.DiveDeepStatus)
	})

	s.Run("grounded re-upload replaces extra info", func() {
		_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("IJ90", domain.SourceGrounded, 0, map[string]string{domain.FieldStatus: "Yes", "extra:Reason": "brakes"}),
			fragment("IJ90", domain.SourceGrounded, 1, map[string]string{domain.FieldStatus: "No"}),
		})
		s.Require().NoError(err)

		record, err := s.store.Lookup(s.ctx, "IJ90")
		s.Require().NoError(err)
		s.Equal(domain.GroundedNo, record.GroundedStatus)
		s.Empty(record.ExtraInfo)
	})
}

func (s *ReconcilerSuite) TestDisplayName() {
	s.Run("first non-empty name wins", func() {
		_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("KL12", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
			fragment("KL12", domain.SourceVinAudit, 0, map[string]string{domain.FieldStatus: "Pass", domain.FieldName: "Truck 9"}),
			fragment("KL12", domain.SourceGrounded, 0, map[string]string{domain.FieldStatus: "No", domain.FieldName: "Renamed"}),
		})
		s.Require().NoError(err)

		record, err := s.store.Lookup(s.ctx, "KL12")
		s.Require().NoError(err)
		s.Equal("Truck 9", record.DisplayName)
	})

	s.Run("empty name never clears an existing one", func() {
		_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("MN34", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass", domain.FieldName: "Bus 3"}),
		})
		s.Require().NoError(err)
		_, err = s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
			fragment("MN34", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Fail"}),
		})
		s.Require().NoError(err)

		record, err := s.store.Lookup(s.ctx, "MN34")
		s.Require().NoError(err)
		s.Equal("Bus 3", record.DisplayName)
	})
}

func (s *ReconcilerSuite) TestAdditiveBatches() {
	_, err := s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
		fragment("OP56", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
	})
	s.Require().NoError(err)
	batchOne := s.snapshot()

	// Batch 2 has disjoint plates; batch 1's records must survive unchanged.
	_, err = s.reconciler.Merge(s.ctx, s.store, []domain.VehicleFragment{
		fragment("QR78", domain.SourceVinAudit, 0, map[string]string{domain.FieldStatus: "Fail"}),
	})
	s.Require().NoError(err)

	s.Equal(2, s.store.Len())
	s.Equal(batchOne["OP56"], s.snapshot()["OP56"])
}

func (s *ReconcilerSuite) TestLastMergedAtOnlyAdvancesOnChange() {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	reconciler := New(WithClock(func() time.Time { return clock }))

	fragments := []domain.VehicleFragment{
		fragment("ST90", domain.SourceDiveDeep, 0, map[string]string{domain.FieldStatus: "Pass"}),
	}
	_, err := reconciler.Merge(s.ctx, s.store, fragments)
	s.Require().NoError(err)

	clock = clock.Add(time.Hour)
	_, err = reconciler.Merge(s.ctx, s.store, fragments)
	s.Require().NoError(err)

	record, err := s.store.Lookup(s.ctx, "ST90")
	s.Require().NoError(err)
	s.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), record.LastMergedAt)
}
