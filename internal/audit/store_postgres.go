package audit

import (
	"context"
	"database/sql"
	"fmt"

	"platecheck/internal/domain"
	"platecheck/pkg/platform/sentinel"
)

// PostgresOutcomeStore persists the audit history. Inserts are idempotent on
// outcome ID so a retried append after a lost response cannot duplicate a
// decision.
type PostgresOutcomeStore struct {
	db *sql.DB
}

func NewPostgresOutcomeStore(db *sql.DB) *PostgresOutcomeStore {
	return &PostgresOutcomeStore{db: db}
}

func (s *PostgresOutcomeStore) Append(ctx context.Context, outcome domain.AuditOutcome) error {
	query := `
		INSERT INTO audit_outcomes (
			id, plate, vehicle_name, decided_at, result,
			problem_description, auditor_identity, qr_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		outcome.ID,
		outcome.Plate,
		outcome.VehicleNameSnapshot,
		outcome.Timestamp,
		string(outcome.Result),
		outcome.ProblemDescription,
		outcome.AuditorIdentity,
		outcome.QRPayload,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresOutcomeStore) List(ctx context.Context, filter domain.OutcomeFilter) ([]domain.AuditOutcome, error) {
	query := `
		SELECT id, plate, vehicle_name, decided_at, result,
		       problem_description, auditor_identity, qr_payload
		FROM audit_outcomes
	`
	args := []any{}
	switch filter {
	case domain.FilterPassedOnly:
		query += ` WHERE result = $1`
		args = append(args, string(domain.ResultPass))
	case domain.FilterBlockedOnly:
		query += ` WHERE result = $1`
		args = append(args, string(domain.ResultBlocked))
	}
	// seq preserves insertion order for equal timestamps.
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var outcomes []domain.AuditOutcome
	for rows.Next() {
		var outcome domain.AuditOutcome
		err := rows.Scan(
			&outcome.ID,
			&outcome.Plate,
			&outcome.VehicleNameSnapshot,
			&outcome.Timestamp,
			&outcome.Result,
			&outcome.ProblemDescription,
			&outcome.AuditorIdentity,
			&outcome.QRPayload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w: %w", sentinel.ErrUnavailable, err)
	}
	return outcomes, nil
}
