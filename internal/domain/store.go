package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TickStore persists processed ticks durably.
type TickStore interface {
	Insert(ctx context.Context, tick ProcessedTick) error
	InsertBatch(ctx context.Context, ticks []ProcessedTick) error
	GetByHash(ctx context.Context, hash string) (ProcessedTick, error)
	ListByEvent(ctx context.Context, eventID string, opts ListOpts) ([]ProcessedTick, error)
	Count(ctx context.Context) (int64, error)
}

// ArbStore persists synthetic arbitrage positions.
type ArbStore interface {
	Insert(ctx context.Context, arb SyntheticArbitrage) error
	UpdateStatus(ctx context.Context, id string, status ArbStatus) error
	GetByID(ctx context.Context, id string) (SyntheticArbitrage, error)
	ListByStatus(ctx context.Context, status ArbStatus, opts ListOpts) ([]SyntheticArbitrage, error)
	ListRecent(ctx context.Context, limit int) ([]SyntheticArbitrage, error)
}

// ValidationStore persists the append-only validation history.
type ValidationStore interface {
	Insert(ctx context.Context, result ValidationResult) error
	ListByArb(ctx context.Context, arbID string) ([]ValidationResult, error)
	ListByScenario(ctx context.Context, scenarioID string) ([]ValidationResult, error)
	Latest(ctx context.Context, arbID string) (ValidationResult, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
