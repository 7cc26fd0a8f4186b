package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// ValidationStore implements domain.ValidationStore using PostgreSQL. The
// table is append-only: results are inserted, never updated, so the rows for
// one scenario form the full re-validation history.
type ValidationStore struct {
	pool *pgxpool.Pool
}

// NewValidationStore creates a new ValidationStore backed by the given pool.
func NewValidationStore(pool *pgxpool.Pool) *ValidationStore {
	return &ValidationStore{pool: pool}
}

// Insert appends one validation result. Sub-results are stored as JSONB.
func (s *ValidationStore) Insert(ctx context.Context, result domain.ValidationResult) error {
	subJSON, err := json.Marshal(result.SubResults)
	if err != nil {
		return fmt.Errorf("postgres: marshal sub-results for %s: %w", result.ID, err)
	}

	const query = `
		INSERT INTO validation_results (
			id, arb_id, scenario_id, valid, status, score, sub_results, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		result.ID, result.ArbID, result.ScenarioID, result.Valid,
		string(result.Status), result.Score, subJSON, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert validation result %s: %w", result.ID, err)
	}
	return nil
}

const validationSelectCols = `id, arb_id, scenario_id, valid, status, score, sub_results, created_at`

// ListByArb returns the validation history of one position, oldest first.
func (s *ValidationStore) ListByArb(ctx context.Context, arbID string) ([]domain.ValidationResult, error) {
	query := `SELECT ` + validationSelectCols + `
		FROM validation_results WHERE arb_id = $1 ORDER BY created_at ASC`
	return s.list(ctx, query, arbID)
}

// ListByScenario returns every pass recorded for one scenario, oldest first.
func (s *ValidationStore) ListByScenario(ctx context.Context, scenarioID string) ([]domain.ValidationResult, error) {
	query := `SELECT ` + validationSelectCols + `
		FROM validation_results WHERE scenario_id = $1 ORDER BY created_at ASC`
	return s.list(ctx, query, scenarioID)
}

// Latest returns the most recent validation result for one position.
func (s *ValidationStore) Latest(ctx context.Context, arbID string) (domain.ValidationResult, error) {
	query := `SELECT ` + validationSelectCols + `
		FROM validation_results WHERE arb_id = $1 ORDER BY created_at DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query, arbID)
	result, err := scanValidation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ValidationResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("postgres: latest validation for %s: %w", arbID, err)
	}
	return result, nil
}

func (s *ValidationStore) list(ctx context.Context, query string, args ...any) ([]domain.ValidationResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list validation results: %w", err)
	}
	defer rows.Close()

	var results []domain.ValidationResult
	for rows.Next() {
		result, err := scanValidation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan validation result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list validation results rows: %w", err)
	}
	return results, nil
}

func scanValidation(row pgx.Row) (domain.ValidationResult, error) {
	var r domain.ValidationResult
	var status string
	var subJSON []byte

	if err := row.Scan(
		&r.ID, &r.ArbID, &r.ScenarioID, &r.Valid, &status, &r.Score, &subJSON, &r.CreatedAt,
	); err != nil {
		return domain.ValidationResult{}, err
	}

	r.Status = domain.ArbStatus(status)
	if err := json.Unmarshal(subJSON, &r.SubResults); err != nil {
		return domain.ValidationResult{}, fmt.Errorf("unmarshal sub-results: %w", err)
	}
	return r, nil
}

// Compile-time interface check.
var _ domain.ValidationStore = (*ValidationStore)(nil)
