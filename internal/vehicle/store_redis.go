package vehicle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/sentinel"
)

const vehiclesKey = "platecheck:vehicles"

// RedisStore implements the remote persistence boundary on Redis: one hash,
// field per plate, JSON-encoded record. Suited to deployments where auditors
// share a lightweight cache instead of a relational store.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) LoadVehicles(ctx context.Context) ([]domain.VehicleRecord, error) {
	entries, err := s.client.HGetAll(ctx, vehiclesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w: %w", sentinel.ErrUnavailable, err)
	}

	records := make([]domain.VehicleRecord, 0, len(entries))
	for plate, payload := range entries {
		var record domain.VehicleRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("decode vehicle %s: %w", plate, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// SaveVehicles replaces the hash atomically via pipeline DEL + HSET so a
// concurrent reader never observes a half-written flush.
func (s *RedisStore) SaveVehicles(ctx context.Context, records []domain.VehicleRecord) error {
	fields := make(map[string]interface{}, len(records))
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode vehicle %s: %w", record.Plate, err)
		}
		fields[record.Plate] = payload
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, vehiclesKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, vehiclesKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flush vehicles: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
