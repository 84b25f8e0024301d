package vehicle

import (
	"context"
	"iter"
	"maps"
	"sync"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/sentinel"
)

// MemoryStore keeps the working set of merged records. It intentionally favors
// clarity over performance; a merge batch is the only writer section, reads may
// freely interleave.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.VehicleRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.VehicleRecord)}
}

func (s *MemoryStore) Lookup(_ context.Context, rawPlate string) (domain.VehicleRecord, error) {
	plate := domain.NormalizePlate(rawPlate)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[plate]; ok {
		return cloneRecord(record), nil
	}
	return domain.VehicleRecord{}, sentinel.ErrNotFound
}

func (s *MemoryStore) Upsert(_ context.Context, record domain.VehicleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Plate] = cloneRecord(record)
	return nil
}

// All is restartable: each range over the returned sequence iterates a fresh
// snapshot of the current records.
func (s *MemoryStore) All() iter.Seq[domain.VehicleRecord] {
	return func(yield func(domain.VehicleRecord) bool) {
		s.mu.RLock()
		snapshot := make([]domain.VehicleRecord, 0, len(s.records))
		for _, record := range s.records {
			snapshot = append(snapshot, cloneRecord(record))
		}
		s.mu.RUnlock()

		for _, record := range snapshot {
			if !yield(record) {
				return
			}
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Replace swaps the entire working set, used when seeding from the remote
// store at startup.
func (s *MemoryStore) Replace(records []domain.VehicleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.VehicleRecord, len(records))
	for _, record := range records {
		s.records[record.Plate] = cloneRecord(record)
	}
}

// cloneRecord copies the record including its ExtraInfo map so callers can
// never alias store-owned state.
func cloneRecord(r domain.VehicleRecord) domain.VehicleRecord {
	if r.ExtraInfo != nil {
		r.ExtraInfo = maps.Clone(r.ExtraInfo)
	}
	return r
}
