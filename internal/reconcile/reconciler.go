// Package reconcile merges per-feed vehicle fragments into canonical records.
// It is the only writer of the vehicle store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"platecheck/internal/domain"
	"platecheck/internal/feed"
	"platecheck/internal/vehicle"
	"platecheck/pkg/platform/sentinel"
)

// Reconciler applies fragment batches to a vehicle store. The clock is
// injectable so merge timestamps stay deterministic in tests.
type Reconciler struct {
	now func() time.Time
}

type Option func(*Reconciler)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func New(opts ...Option) *Reconciler {
	r := &Reconciler{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Merge applies fragments to the store and reports how many records changed.
//
// Precedence: each source kind owns disjoint record fields, so fragments of
// different kinds never conflict. Within one kind and plate, the fragment with
// the higher row ordinal wins (re-upload supersedes). DisplayName is set by
// the first fragment carrying a non-empty name and never cleared afterwards.
//
// Merge is additive: records with no fragment in this batch are untouched.
// It is idempotent under content equality because LastMergedAt only advances
// when a fragment actually changes its record.
func (r *Reconciler) Merge(ctx context.Context, store vehicle.Store, fragments []domain.VehicleFragment) (int, error) {
	// Within one source and plate the higher ordinal must win even if the
	// batch arrives out of order; cross-source order is preserved so the
	// first-name-wins rule sees fragments as the feeds supplied them.
	type key struct {
		plate  string
		source domain.SourceKind
	}
	applied := make(map[key]int)

	changed := 0
	for _, fragment := range fragments {
		k := key{plate: fragment.Plate, source: fragment.Source}
		if last, ok := applied[k]; ok && last > fragment.RowOrdinal {
			continue
		}
		applied[k] = fragment.RowOrdinal

		record, err := store.Lookup(ctx, fragment.Plate)
		created := false
		switch {
		case err == nil:
		case isNotFound(err):
			record = domain.NewVehicleRecord(fragment.Plate)
			created = true
		default:
			return changed, fmt.Errorf("lookup %s during merge: %w", fragment.Plate, err)
		}

		if apply(&record, fragment) || created {
			record.LastMergedAt = r.now()
			if err := store.Upsert(ctx, record); err != nil {
				return changed, fmt.Errorf("upsert %s during merge: %w", fragment.Plate, err)
			}
			changed++
		}
	}
	return changed, nil
}

// apply writes the fragment's owned fields into the record and reports whether
// anything changed.
func apply(record *domain.VehicleRecord, fragment domain.VehicleFragment) bool {
	changed := false

	if record.DisplayName == "" {
		if name := fragment.Fields[domain.FieldName]; name != "" {
			record.DisplayName = name
			changed = true
		}
	}

	switch fragment.Source {
	case domain.SourceDiveDeep:
		if status := feed.ParseCheckStatus(fragment.Fields[domain.FieldStatus]); status != record.DiveDeepStatus {
			record.DiveDeepStatus = status
			changed = true
		}
	case domain.SourceVinAudit:
		if status := feed.ParseCheckStatus(fragment.Fields[domain.FieldStatus]); status != record.VinAuditStatus {
			record.VinAuditStatus = status
			changed = true
		}
	case domain.SourceGrounded:
		if status := feed.ParseGroundedStatus(fragment.Fields[domain.FieldStatus]); status != record.GroundedStatus {
			record.GroundedStatus = status
			changed = true
		}
		extra := extraInfo(fragment)
		if !maps.Equal(extra, record.ExtraInfo) {
			record.ExtraInfo = extra
			changed = true
		}
	}
	return changed
}

// extraInfo collects the Grounded feed's pass-through columns. Replacement,
// not accumulation: a re-upload supersedes the previous auxiliary data.
func extraInfo(fragment domain.VehicleFragment) map[string]string {
	var extra map[string]string
	for key, value := range fragment.Fields {
		if name, ok := strings.CutPrefix(key, "extra:"); ok {
			if extra == nil {
				extra = make(map[string]string)
			}
			extra[name] = value
		}
	}
	return extra
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
