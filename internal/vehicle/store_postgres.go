package vehicle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/sentinel"
)

// PostgresStore implements the remote persistence boundary on PostgreSQL.
// SaveVehicles is a whole-store flush: concurrent flushes from other auditor
// instances race and the last one wins, matching the merge rule extended to
// flush granularity.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LoadVehicles(ctx context.Context) ([]domain.VehicleRecord, error) {
	query := `
		SELECT plate, display_name, dive_deep_status, vin_audit_status,
		       grounded_status, extra_info, last_merged_at
		FROM vehicles
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []domain.VehicleRecord
	for rows.Next() {
		var (
			record    domain.VehicleRecord
			extraJSON []byte
		)
		err := rows.Scan(
			&record.Plate,
			&record.DisplayName,
			&record.DiveDeepStatus,
			&record.VinAuditStatus,
			&record.GroundedStatus,
			&extraJSON,
			&record.LastMergedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		if len(extraJSON) > 0 {
			if err := json.Unmarshal(extraJSON, &record.ExtraInfo); err != nil {
				return nil, fmt.Errorf("decode extra info for %s: %w", record.Plate, err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w: %w", sentinel.ErrUnavailable, err)
	}
	return records, nil
}

func (s *PostgresStore) SaveVehicles(ctx context.Context, records []domain.VehicleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO vehicles (
			plate, display_name, dive_deep_status, vin_audit_status,
			grounded_status, extra_info, last_merged_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (plate) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			dive_deep_status = EXCLUDED.dive_deep_status,
			vin_audit_status = EXCLUDED.vin_audit_status,
			grounded_status = EXCLUDED.grounded_status,
			extra_info = EXCLUDED.extra_info,
			last_merged_at = EXCLUDED.last_merged_at
	`
	for _, record := range records {
		var extraJSON []byte
		if len(record.ExtraInfo) > 0 {
			extraJSON, err = json.Marshal(record.ExtraInfo)
			if err != nil {
				return fmt.Errorf("encode extra info for %s: %w", record.Plate, err)
			}
		}
		_, err = tx.ExecContext(ctx, query,
			record.Plate,
			record.DisplayName,
			string(record.DiveDeepStatus),
			string(record.VinAuditStatus),
			string(record.GroundedStatus),
			extraJSON,
			record.LastMergedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert vehicle %s: %w: %w", record.Plate, sentinel.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
