// Package pipeline wires the stages together: feed consumption, batch tick
// processing, correlation, detection, validation, and publication of
// approved positions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/synthbet/arbpipeline/internal/correlation"
	"github.com/synthbet/arbpipeline/internal/detector"
	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/feed"
	"github.com/synthbet/arbpipeline/internal/processor"
	"github.com/synthbet/arbpipeline/internal/report"
	"github.com/synthbet/arbpipeline/internal/validation"
)

// Config holds the orchestrator's batching parameters.
type Config struct {
	// BatchSize flushes a batch as soon as this many ticks are buffered.
	BatchSize int
	// FlushInterval flushes a partial batch after this much quiet time.
	FlushInterval time.Duration
}

// Stores groups the persistence ports the orchestrator writes to.
type Stores struct {
	Arbs        domain.ArbStore
	Validations domain.ValidationStore
	Audit       domain.AuditStore
}

// Orchestrator drives the full flow. Each stage failure is contained: a bad
// batch is audited and dropped, and the loops keep running until the context
// is cancelled or the feed closes.
type Orchestrator struct {
	source     feed.Source
	processor  *processor.Processor
	analyzer   *correlation.Analyzer
	detector   *detector.Detector
	engine     *validation.Engine
	aggregator *report.Aggregator
	stores     Stores
	publisher  domain.ApprovedPublisher
	cfg        Config
	logger     *slog.Logger
}

func NewOrchestrator(
	source feed.Source,
	proc *processor.Processor,
	analyzer *correlation.Analyzer,
	det *detector.Detector,
	engine *validation.Engine,
	aggregator *report.Aggregator,
	stores Stores,
	publisher domain.ApprovedPublisher,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:     source,
		processor:  proc,
		analyzer:   analyzer,
		detector:   det,
		engine:     engine,
		aggregator: aggregator,
		stores:     stores,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the feed and the batching loop and blocks until the context is
// cancelled or the feed terminates. A drained feed is a clean shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Int("batch_size", o.cfg.BatchSize),
		slog.Duration("flush_interval", o.cfg.FlushInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.source.Run(ctx)
		if ctx.Err() != nil || err == nil {
			return nil
		}
		return fmt.Errorf("feed: %w", err)
	})

	g.Go(func() error {
		err := o.runBatches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	err := g.Wait()
	if err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// runBatches buffers ticks into batches by size and flush interval and runs
// each batch through the full stage chain.
func (o *Orchestrator) runBatches(ctx context.Context) error {
	flush := time.NewTicker(o.cfg.FlushInterval)
	defer flush.Stop()

	batch := make([]domain.OddsTick, 0, o.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-o.source.Ticks():
			if !ok {
				// Feed closed; process the tail and stop.
				if len(batch) > 0 {
					o.handleBatch(ctx, batch)
				}
				return nil
			}
			batch = append(batch, tick)
			if len(batch) >= o.cfg.BatchSize {
				o.handleBatch(ctx, batch)
				batch = make([]domain.OddsTick, 0, o.cfg.BatchSize)
				flush.Reset(o.cfg.FlushInterval)
			}
		case <-flush.C:
			if len(batch) > 0 {
				o.handleBatch(ctx, batch)
				batch = make([]domain.OddsTick, 0, o.cfg.BatchSize)
			}
		}
	}
}

// handleBatch drives one batch end to end. Failures inside a stage never
// stop the orchestrator; they are logged, audited, and the batch is dropped.
func (o *Orchestrator) handleBatch(ctx context.Context, ticks []domain.OddsTick) {
	result, err := o.processor.ProcessBatch(ctx, ticks, o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("batch processing refused", slog.String("error", err.Error()))
		return
	}
	o.audit(ctx, "batch_processed", map[string]any{
		"total":      result.Total,
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
		"duplicates": result.Duplicates,
		"batches":    len(result.Batches),
	})

	processed := result.ProcessedTicks()
	if len(processed) == 0 {
		return
	}

	cands, err := o.analyzer.Analyze(ctx, processed)
	if err != nil {
		o.logger.Error("correlation analysis failed", slog.String("error", err.Error()))
		return
	}
	if len(cands) == 0 {
		return
	}

	arbs, skipped := o.detector.DetectAll(cands)
	if skipped > 0 {
		o.audit(ctx, "candidates_skipped", map[string]any{"count": skipped})
	}
	if len(arbs) == 0 {
		return
	}
	for _, arb := range arbs {
		if err := o.stores.Arbs.Insert(ctx, arb); err != nil {
			o.logger.Error("position insert failed",
				slog.String("arb_id", arb.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	o.validateAndPublish(ctx, arbs)
}

// validateAndPublish runs batch validation, persists the results, advances
// every position's status, and publishes approved positions with their
// validation trail.
func (o *Orchestrator) validateAndPublish(ctx context.Context, arbs []domain.SyntheticArbitrage) {
	batch := o.engine.ValidateBatch(ctx, arbs)

	for i, vr := range batch.Results {
		if err := o.stores.Validations.Insert(ctx, vr); err != nil {
			o.logger.Error("validation result insert failed",
				slog.String("arb_id", vr.ArbID),
				slog.String("error", err.Error()),
			)
		}
		if err := o.stores.Arbs.UpdateStatus(ctx, vr.ArbID, vr.Status); err != nil {
			o.logger.Error("status update failed",
				slog.String("arb_id", vr.ArbID),
				slog.String("error", err.Error()),
			)
		}
		if vr.Status == domain.ArbStatusValid {
			arb := arbs[i]
			arb.Status = vr.Status
			if err := o.publisher.PublishApproved(ctx, arb, []domain.ValidationResult{vr}); err != nil {
				o.logger.Error("publish failed",
					slog.String("arb_id", arb.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	summary := o.aggregator.Summarize(batch)
	o.audit(ctx, "batch_validated", map[string]any{
		"total":           summary.Total,
		"valid":           summary.Valid,
		"invalid":         summary.Invalid,
		"requires_review": summary.RequiresReview,
		"mean_score":      summary.MeanScore,
		"clustered":       summary.ClusteredArbs,
		"recommendations": summary.Recommendations,
	})
	o.logger.Info("batch validated",
		slog.Int("total", summary.Total),
		slog.Int("valid", summary.Valid),
		slog.Int("requires_review", summary.RequiresReview),
		slog.Int("invalid", summary.Invalid),
	)
}

func (o *Orchestrator) audit(ctx context.Context, event string, detail map[string]any) {
	if o.stores.Audit == nil {
		return
	}
	if err := o.stores.Audit.Log(ctx, event, detail); err != nil {
		o.logger.Warn("audit write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
