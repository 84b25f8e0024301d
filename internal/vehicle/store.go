// Package vehicle owns the merged vehicle records: the in-memory working set
// and the remote persistence boundary it flushes to.
package vehicle

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store,RemoteStore

import (
	"context"
	"iter"

	"platecheck/internal/domain"
)

// Store is the in-memory indexed collection of merged records. Interface-driven
// to keep the reconciler and audit workflow testable without wiring
// persistence.
type Store interface {
	// Lookup normalizes the caller's raw plate exactly like the feed
	// normalizer before indexing, so user-typed plates join consistently.
	// Returns sentinel.ErrNotFound when the plate is absent.
	Lookup(ctx context.Context, rawPlate string) (domain.VehicleRecord, error)
	Upsert(ctx context.Context, record domain.VehicleRecord) error
	// All yields every record as a lazy, restartable sequence. Iteration
	// order is unspecified.
	All() iter.Seq[domain.VehicleRecord]
	Len() int
}

// RemoteStore is the remote persistence boundary. All operations are fallible
// and retriable by the caller; the core surfaces failures (wrapped
// sentinel.ErrUnavailable) without corrupting in-memory state.
type RemoteStore interface {
	LoadVehicles(ctx context.Context) ([]domain.VehicleRecord, error)
	// SaveVehicles flushes the whole working set. Concurrent flushes from
	// other instances race; the last flush wins by design.
	SaveVehicles(ctx context.Context, records []domain.VehicleRecord) error
}
