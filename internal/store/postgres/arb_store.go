package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// ArbStore implements domain.ArbStore using PostgreSQL. Tick legs are stored
// by content hash and re-joined against processed_ticks on read.
type ArbStore struct {
	pool *pgxpool.Pool
}

// NewArbStore creates a new ArbStore backed by the given connection pool.
func NewArbStore(pool *pgxpool.Pool) *ArbStore {
	return &ArbStore{pool: pool}
}

// Insert stores a new synthetic arbitrage position.
func (s *ArbStore) Insert(ctx context.Context, arb domain.SyntheticArbitrage) error {
	const query = `
		INSERT INTO synthetic_arbs (
			id, event_id, primary_hash, secondary_hash,
			expected_value, confidence, kelly_fraction, hedge_ratio,
			status, entry_at, expires_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)`

	_, err := s.pool.Exec(ctx, query,
		arb.ID, arb.EventID, arb.PrimaryLeg.TickHash, arb.SecondaryLeg.TickHash,
		arb.ExpectedValue, arb.Confidence, arb.KellyFraction, arb.HedgeRatio,
		string(arb.Status), arb.EntryAt, arb.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb %s: %w", arb.ID, err)
	}
	return nil
}

// UpdateStatus advances the status of a position. Backward transitions are
// the caller's responsibility to prevent; the store records what it is told.
func (s *ArbStore) UpdateStatus(ctx context.Context, id string, status domain.ArbStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE synthetic_arbs SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update arb status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var arbSelect = `
	SELECT a.id, a.event_id, a.expected_value, a.confidence, a.kelly_fraction,
	       a.hedge_ratio, a.status, a.entry_at, a.expires_at,
	       ` + tickSelectColsPrefixed("p") + `,
	       ` + tickSelectColsPrefixed("q") + `
	FROM synthetic_arbs a
	JOIN processed_ticks p ON p.tick_hash = a.primary_hash
	JOIN processed_ticks q ON q.tick_hash = a.secondary_hash`

// GetByID retrieves one position with both legs.
func (s *ArbStore) GetByID(ctx context.Context, id string) (domain.SyntheticArbitrage, error) {
	row := s.pool.QueryRow(ctx, arbSelect+` WHERE a.id = $1`, id)
	arb, err := scanArb(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SyntheticArbitrage{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SyntheticArbitrage{}, fmt.Errorf("postgres: get arb %s: %w", id, err)
	}
	return arb, nil
}

// ListByStatus returns positions in the given status, newest first.
func (s *ArbStore) ListByStatus(ctx context.Context, status domain.ArbStatus, opts domain.ListOpts) ([]domain.SyntheticArbitrage, error) {
	query := arbSelect + ` WHERE a.status = $1 ORDER BY a.entry_at DESC`
	args := []any{string(status)}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.list(ctx, query, args...)
}

// ListRecent returns the most recent positions regardless of status.
func (s *ArbStore) ListRecent(ctx context.Context, limit int) ([]domain.SyntheticArbitrage, error) {
	query := arbSelect + ` ORDER BY a.entry_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	return s.list(ctx, query, args...)
}

func (s *ArbStore) list(ctx context.Context, query string, args ...any) ([]domain.SyntheticArbitrage, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arbs: %w", err)
	}
	defer rows.Close()

	var arbs []domain.SyntheticArbitrage
	for rows.Next() {
		arb, err := scanArb(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan arb: %w", err)
		}
		arbs = append(arbs, arb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list arbs rows: %w", err)
	}
	return arbs, nil
}

func scanArb(row pgx.Row) (domain.SyntheticArbitrage, error) {
	var a domain.SyntheticArbitrage
	var status string
	primary := newTickScanner(&a.PrimaryLeg)
	secondary := newTickScanner(&a.SecondaryLeg)

	dest := []any{
		&a.ID, &a.EventID, &a.ExpectedValue, &a.Confidence, &a.KellyFraction,
		&a.HedgeRatio, &status, &a.EntryAt, &a.ExpiresAt,
	}
	dest = append(dest, primary.dest()...)
	dest = append(dest, secondary.dest()...)

	if err := row.Scan(dest...); err != nil {
		return domain.SyntheticArbitrage{}, err
	}

	a.Status = domain.ArbStatus(status)
	primary.finish()
	secondary.finish()
	return a, nil
}

// Compile-time interface check.
var _ domain.ArbStore = (*ArbStore)(nil)
