package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a new TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

const tickSelectCols = `tick_hash, market_id, event_id, sport, market_type, side,
	price, exchange, observed_at, time_remaining_ms, period,
	implied_prob, kelly_fraction, expected_value, processed_at`

const tickInsert = `
	INSERT INTO processed_ticks (
		tick_hash, market_id, event_id, sport, market_type, side,
		price, exchange, observed_at, time_remaining_ms, period,
		implied_prob, kelly_fraction, expected_value, processed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15
	)
	ON CONFLICT (tick_hash) DO NOTHING`

// Insert stores one processed tick. Re-inserting an identical tick is a
// no-op, matching the cache's dedupe semantics.
func (s *TickStore) Insert(ctx context.Context, tick domain.ProcessedTick) error {
	_, err := s.pool.Exec(ctx, tickInsert, tickArgs(tick)...)
	if err != nil {
		return fmt.Errorf("postgres: insert tick %s: %w", tick.TickHash, err)
	}
	return nil
}

// InsertBatch stores processed ticks in one round trip using pgx batching.
func (s *TickStore) InsertBatch(ctx context.Context, ticks []domain.ProcessedTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tick := range ticks {
		batch.Queue(tickInsert, tickArgs(tick)...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range ticks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert tick batch: %w", err)
		}
	}
	return nil
}

func tickArgs(t domain.ProcessedTick) []any {
	return []any{
		t.TickHash, t.MarketID, t.EventID, string(t.Sport), string(t.MarketType), string(t.Side),
		t.Price, t.Exchange, t.ObservedAt, t.TimeRemaining.Milliseconds(), t.Period,
		t.Metrics.ImpliedProbability, t.Metrics.KellyFraction, t.Metrics.ExpectedValue, t.ProcessedAt,
	}
}

// GetByHash retrieves a processed tick by its content hash.
func (s *TickStore) GetByHash(ctx context.Context, hash string) (domain.ProcessedTick, error) {
	query := `SELECT ` + tickSelectCols + ` FROM processed_ticks WHERE tick_hash = $1`

	row := s.pool.QueryRow(ctx, query, hash)
	tick, err := scanTick(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProcessedTick{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ProcessedTick{}, fmt.Errorf("postgres: get tick %s: %w", hash, err)
	}
	return tick, nil
}

// ListByEvent returns processed ticks for one event, newest first.
func (s *TickStore) ListByEvent(ctx context.Context, eventID string, opts domain.ListOpts) ([]domain.ProcessedTick, error) {
	query := `SELECT ` + tickSelectCols + ` FROM processed_ticks WHERE event_id = $1`
	args := []any{eventID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND observed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND observed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY observed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var ticks []domain.ProcessedTick
	for rows.Next() {
		tick, err := scanTick(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan tick: %w", err)
		}
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list ticks rows: %w", err)
	}
	return ticks, nil
}

// Count returns the total number of processed ticks.
func (s *TickStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM processed_ticks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count ticks: %w", err)
	}
	return n, nil
}

func scanTick(row pgx.Row) (domain.ProcessedTick, error) {
	var t domain.ProcessedTick
	var sport, marketType, side string
	var remainingMs int64

	if err := row.Scan(
		&t.TickHash, &t.MarketID, &t.EventID, &sport, &marketType, &side,
		&t.Price, &t.Exchange, &t.ObservedAt, &remainingMs, &t.Period,
		&t.Metrics.ImpliedProbability, &t.Metrics.KellyFraction, &t.Metrics.ExpectedValue, &t.ProcessedAt,
	); err != nil {
		return domain.ProcessedTick{}, err
	}

	t.Sport = domain.Sport(sport)
	t.MarketType = domain.MarketType(marketType)
	t.Side = domain.TickSide(side)
	t.TimeRemaining = time.Duration(remainingMs) * time.Millisecond
	return t, nil
}

// tickSelectColsPrefixed returns the processed_ticks column list qualified
// with a table alias, for joined selects.
func tickSelectColsPrefixed(alias string) string {
	cols := []string{
		"tick_hash", "market_id", "event_id", "sport", "market_type", "side",
		"price", "exchange", "observed_at", "time_remaining_ms", "period",
		"implied_prob", "kelly_fraction", "expected_value", "processed_at",
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// tickScanner collects the intermediate values needed to scan a
// ProcessedTick out of a joined row.
type tickScanner struct {
	t           *domain.ProcessedTick
	sport       string
	marketType  string
	side        string
	remainingMs int64
}

func newTickScanner(t *domain.ProcessedTick) *tickScanner {
	return &tickScanner{t: t}
}

func (s *tickScanner) dest() []any {
	t := s.t
	return []any{
		&t.TickHash, &t.MarketID, &t.EventID, &s.sport, &s.marketType, &s.side,
		&t.Price, &t.Exchange, &t.ObservedAt, &s.remainingMs, &t.Period,
		&t.Metrics.ImpliedProbability, &t.Metrics.KellyFraction, &t.Metrics.ExpectedValue, &t.ProcessedAt,
	}
}

func (s *tickScanner) finish() {
	s.t.Sport = domain.Sport(s.sport)
	s.t.MarketType = domain.MarketType(s.marketType)
	s.t.Side = domain.TickSide(s.side)
	s.t.TimeRemaining = time.Duration(s.remainingMs) * time.Millisecond
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)
