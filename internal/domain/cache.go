package domain

import (
	"context"
	"time"
)

// TickCache provides fast, idempotent access to processed ticks keyed by
// content hash. PutProcessed must be atomic: when two writers race on the
// same hash, exactly one observes created == true.
type TickCache interface {
	// PutProcessed stores the tick under its hash. It returns created ==
	// false without error when the hash is already present (duplicate).
	PutProcessed(ctx context.Context, tick ProcessedTick) (created bool, err error)
	GetProcessed(ctx context.Context, hash string) (ProcessedTick, error)
}

// PricePoint is one observation in a market's rolling price history.
type PricePoint struct {
	Price      float64
	ObservedAt time.Time
}

// PriceHistory maintains a bounded rolling window of price observations per
// market, consumed by the correlation analyzer.
type PriceHistory interface {
	Append(ctx context.Context, marketID string, pt PricePoint) error
	// Window returns up to n most recent points, oldest first.
	Window(ctx context.Context, marketID string, n int) ([]PricePoint, error)
}

// ApprovedPublisher delivers validated positions downstream together with
// their validation trail. The pipeline's output contract ends here.
type ApprovedPublisher interface {
	PublishApproved(ctx context.Context, arb SyntheticArbitrage, trail []ValidationResult) error
}
