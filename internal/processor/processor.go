// Package processor implements batched tick processing with scoped resource
// bundles. Each batch owns its resources for its lifetime and releases them
// deterministically on every exit path.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/metrics"
)

// Config holds the processor's tunable parameters.
type Config struct {
	// MaxConcurrency bounds how many batches run in parallel, each on its
	// own resource bundle.
	MaxConcurrency int
	// AcquireTimeout bounds resource bundle acquisition.
	AcquireTimeout time.Duration
	// TickTimeout bounds each per-tick processing step.
	TickTimeout time.Duration
}

// Processor consumes batches of odds ticks, derives per-tick metrics, and
// writes results to cache, durable storage, and the append-only log.
type Processor struct {
	provider domain.ResourceProvider
	history  domain.PriceHistory // may be nil; shared, safe for concurrent use
	cfg      Config
	logger   *slog.Logger
}

// New creates a Processor. history may be nil when no correlation window is
// maintained.
func New(provider domain.ResourceProvider, history domain.PriceHistory, cfg Config, logger *slog.Logger) *Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Processor{
		provider: provider,
		history:  history,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "tick_processor")),
	}
}

// ProcessBatch splits ticks into batches of at most batchSize and processes
// them. Independent batches run concurrently up to the configured limit;
// ticks within one batch are processed sequentially in input order against
// that batch's private resource bundle.
//
// A batchSize <= 0 is a configuration error, not silently clamped. Per-tick
// failures are captured in the result; only configuration errors are
// returned as a top-level error.
func (p *Processor) ProcessBatch(ctx context.Context, ticks []domain.OddsTick, batchSize int) (ProcessResult, error) {
	if batchSize <= 0 {
		return ProcessResult{}, fmt.Errorf("processor: batch size %d: %w", batchSize, domain.ErrInvalidConfig)
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	started := time.Now()

	chunks := chunk(ticks, batchSize)
	results := make([]BatchResult, len(chunks))

	sem := semaphore.NewWeighted(int64(p.cfg.MaxConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, batch := range chunks {
		i, batch := i, batch
		if err := sem.Acquire(gctx, 1); err != nil {
			// Context cancelled before this batch started; mark it
			// cancelled without touching any resources.
			results[i] = BatchResult{
				BatchID: uuid.NewString(),
				State:   BatchCancelled,
				Fatal:   fmt.Errorf("%w: %w", domain.ErrBatchCancelled, err),
			}
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = p.runBatch(gctx, batch)
			return nil
		})
	}
	_ = g.Wait()

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	return aggregate(results, started, int64(memAfter.HeapAlloc)-int64(memBefore.HeapAlloc)), nil
}

// runBatch drives one batch through its state machine:
// pending -> acquiring -> processing -> aggregating -> completed|failed|cancelled.
// A batch never re-enters processing once aggregation begins.
func (p *Processor) runBatch(ctx context.Context, ticks []domain.OddsTick) BatchResult {
	result := BatchResult{
		BatchID: uuid.NewString(),
		State:   BatchPending,
		Started: time.Now(),
	}
	logger := p.logger.With(slog.String("batch_id", result.BatchID))

	result.State = BatchAcquiring
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	bundle, err := p.provider.Acquire(acquireCtx, result.BatchID)
	cancel()
	if err != nil {
		result.State = BatchFailed
		result.Fatal = fmt.Errorf("processor: acquire resources for batch %s: %w", result.BatchID, err)
		result.Finished = time.Now()
		logger.Error("resource acquisition failed", slog.String("error", err.Error()))
		return result
	}

	// Release is guaranteed on every exit path from here on, including
	// panics, and runs against a fresh context so cancellation of the batch
	// never leaks the bundle.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		defer cancel()
		if err := bundle.Release(releaseCtx); err != nil {
			logger.Error("resource release failed", slog.String("error", err.Error()))
		}
	}()

	result.State = BatchProcessing
	result.Outcomes = make([]TickOutcome, 0, len(ticks))

	// Latest observed price per opposing side within this batch, used to
	// pair a tick with its counterpart for EV and Kelly.
	opposing := make(map[string]float64)

	for i, tick := range ticks {
		// Cancellation is honored between tick boundaries only.
		if err := ctx.Err(); err != nil {
			result.State = BatchCancelled
			result.Fatal = fmt.Errorf("%w at tick %d: %w", domain.ErrBatchCancelled, i, err)
			result.Finished = time.Now()
			logger.Warn("batch cancelled", slog.Int("processed", i), slog.Int("total", len(ticks)))
			return result
		}

		outcome := p.processTick(ctx, bundle, tick, opposing)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Err != nil && outcome.Resource {
			// Resource-level failure aborts the remaining ticks.
			result.State = BatchFailed
			result.Fatal = fmt.Errorf("processor: batch %s tick %d: %w", result.BatchID, i, outcome.Err)
			result.Finished = time.Now()
			logger.Error("batch aborted on resource error",
				slog.Int("tick", i),
				slog.String("error", outcome.Err.Error()),
			)
			return result
		}
	}

	result.State = BatchAggregating
	result.Finished = time.Now()
	result.State = BatchCompleted

	logger.Debug("batch completed",
		slog.Int("ticks", len(ticks)),
		slog.Duration("elapsed", result.Finished.Sub(result.Started)),
	)
	return result
}

// processTick runs one tick through the calculator and the batch's resource
// bundle. Errors from the bundle are flagged as resource-level; calculator
// errors stay isolated to the tick.
func (p *Processor) processTick(ctx context.Context, bundle *domain.ResourceBundle, tick domain.OddsTick, opposing map[string]float64) TickOutcome {
	started := time.Now()
	outcome := TickOutcome{Tick: tick}

	tickCtx, cancel := context.WithTimeout(ctx, p.cfg.TickTimeout)
	defer cancel()

	oppPrice, ok := opposing[opposingKey(tick)]
	if !ok {
		fair, err := metrics.OpposingFair(tick.Price)
		if err != nil {
			outcome.Err = fmt.Errorf("processor: tick %s: %w", tick.MarketID, err)
			outcome.Elapsed = time.Since(started)
			return outcome
		}
		oppPrice = fair
	}

	m, err := metrics.Compute(tick, oppPrice)
	if err != nil {
		outcome.Err = fmt.Errorf("processor: tick %s: %w", tick.MarketID, err)
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	processed := domain.ProcessedTick{
		OddsTick:    tick,
		TickHash:    tick.Hash(),
		Metrics:     m,
		ProcessedAt: time.Now().UTC(),
	}

	created, err := bundle.Cache.PutProcessed(tickCtx, processed)
	if err != nil {
		outcome.Err = fmt.Errorf("processor: cache tick %s: %w", processed.TickHash, err)
		outcome.Resource = true
		outcome.Elapsed = time.Since(started)
		return outcome
	}
	if !created {
		// Identical tick already processed; recognize, don't reprocess.
		outcome.Duplicate = true
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	if err := bundle.Store.Insert(tickCtx, processed); err != nil {
		outcome.Err = fmt.Errorf("processor: store tick %s: %w", processed.TickHash, err)
		outcome.Resource = true
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	if err := bundle.Log.Append(tickCtx, processed); err != nil {
		outcome.Err = fmt.Errorf("processor: log tick %s: %w", processed.TickHash, err)
		outcome.Resource = true
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	if p.history != nil {
		if err := p.history.Append(tickCtx, tick.MarketID, domain.PricePoint{
			Price:      tick.Price,
			ObservedAt: tick.ObservedAt,
		}); err != nil {
			// History feeds the correlation window; losing a point is not
			// worth failing the tick.
			p.logger.Warn("price history append failed",
				slog.String("market_id", tick.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Record this tick as the opposing quote for its counterpart side.
	opposing[sideKey(tick)] = tick.Price

	outcome.Processed = &processed
	outcome.Elapsed = time.Since(started)
	return outcome
}

// sideKey identifies a tick's own market side within an event.
func sideKey(t domain.OddsTick) string {
	return t.EventID + "|" + string(t.MarketType) + "|" + string(t.Side)
}

// opposingKey identifies the counterpart side a tick should be paired with.
func opposingKey(t domain.OddsTick) string {
	return t.EventID + "|" + string(t.MarketType) + "|" + string(oppositeSide(t.Side))
}

func oppositeSide(s domain.TickSide) domain.TickSide {
	switch s {
	case domain.SideHome:
		return domain.SideAway
	case domain.SideAway:
		return domain.SideHome
	case domain.SideOver:
		return domain.SideUnder
	case domain.SideUnder:
		return domain.SideOver
	default:
		return s
	}
}

// chunk splits ticks into consecutive groups of at most size, preserving
// input order.
func chunk(ticks []domain.OddsTick, size int) [][]domain.OddsTick {
	if len(ticks) == 0 {
		return nil
	}
	out := make([][]domain.OddsTick, 0, (len(ticks)+size-1)/size)
	for start := 0; start < len(ticks); start += size {
		end := start + size
		if end > len(ticks) {
			end = len(ticks)
		}
		out = append(out, ticks[start:end])
	}
	return out
}

// IsResourceError reports whether err is a resource-level failure that
// aborted a batch.
func IsResourceError(err error) bool {
	return errors.Is(err, domain.ErrResourceLost) || errors.Is(err, context.DeadlineExceeded)
}
