package domain

import "context"

// TickLog is a private, append-only log handle owned by one batch. Appends
// preserve call order so the log can be replayed for audit. Close flushes and
// releases the handle; Append after Close returns ErrLogClosed.
type TickLog interface {
	Append(ctx context.Context, tick ProcessedTick) error
	Close(ctx context.Context) error
}

// ResourceBundle is the scoped set of resources a batch owns for its
// lifetime. Bundles are never shared across concurrently running batches.
type ResourceBundle struct {
	Store TickStore
	Cache TickCache
	Log   TickLog

	// Release returns every resource in acquisition-reverse order. It is
	// called exactly once per bundle, on every exit path.
	Release func(ctx context.Context) error
}

// ResourceProvider hands out one resource bundle per batch. Acquisition may
// block on network connects and must honor ctx cancellation and deadlines.
type ResourceProvider interface {
	Acquire(ctx context.Context, batchID string) (*ResourceBundle, error)
}
