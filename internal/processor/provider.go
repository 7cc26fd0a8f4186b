package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// LogOpener opens a fresh append-only log handle for one batch.
type LogOpener interface {
	Open(ctx context.Context, batchID string) (domain.TickLog, error)
}

// BundleProvider builds per-batch resource bundles over shared store and
// cache backends plus a private log handle per batch. The store and cache
// clients are pooled and safe to hand to concurrent bundles; the log handle
// is the only per-batch allocation, so Release only has the log to close.
type BundleProvider struct {
	store domain.TickStore
	cache domain.TickCache
	logs  LogOpener
}

func NewBundleProvider(store domain.TickStore, cache domain.TickCache, logs LogOpener) *BundleProvider {
	return &BundleProvider{store: store, cache: cache, logs: logs}
}

// Acquire implements domain.ResourceProvider.
func (p *BundleProvider) Acquire(ctx context.Context, batchID string) (*domain.ResourceBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire bundle for batch %s: %w", batchID, err)
	}
	log, err := p.logs.Open(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("acquire bundle for batch %s: open log: %w", batchID, err)
	}

	var once sync.Once
	release := func(ctx context.Context) error {
		err := errors.New("bundle already released")
		once.Do(func() {
			err = log.Close(ctx)
		})
		return err
	}

	return &domain.ResourceBundle{
		Store:   p.store,
		Cache:   p.cache,
		Log:     log,
		Release: release,
	}, nil
}
