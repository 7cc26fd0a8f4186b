package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/synthbet/arbpipeline/internal/correlation"
	"github.com/synthbet/arbpipeline/internal/detector"
	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/feed"
	"github.com/synthbet/arbpipeline/internal/pipeline"
	"github.com/synthbet/arbpipeline/internal/processor"
	"github.com/synthbet/arbpipeline/internal/report"
	"github.com/synthbet/arbpipeline/internal/validation"
)

const (
	// validateSweepLimit caps how many stored positions one re-validation
	// sweep loads per status.
	validateSweepLimit = 500

	// monitorInterval is how often monitor mode recomputes its summary.
	monitorInterval = 30 * time.Second

	// monitorRecentLimit caps how many recent positions the monitor view
	// covers.
	monitorRecentLimit = 200
)

// newEngine builds the validation engine from configuration, registering the
// NBA rule set when enabled.
func (a *App) newEngine() *validation.Engine {
	var rules []validation.RuleSet
	if a.cfg.NBA.Enabled {
		rules = append(rules, validation.NewNBARuleSet(validation.NBAConfig{
			MaxQuarterScore:  a.cfg.NBA.MaxQuarterScore,
			QuarterMinutes:   a.cfg.NBA.QuarterMinutes,
			MaxOvertimes:     a.cfg.NBA.MaxOvertimes,
			LiveMaxRemaining: a.cfg.NBA.LiveMaxRemaining.Duration,
		}, nil))
	}

	return validation.NewEngine(
		validation.Config{
			AllowedExchanges: a.cfg.Validation.AllowedExchanges,
			AllowedMarkets:   a.cfg.Validation.AllowedMarkets,
			MaxKellyFraction: a.cfg.Validation.MaxKellyFraction,
			MinExpectedValue: a.cfg.Validation.MinExpectedValue,
			MinConfidence:    a.cfg.Validation.MinConfidence,
			MaxQuoteAge:      a.cfg.Validation.MaxQuoteAge.Duration,
		},
		validation.RiskLimits{
			MaxVaR:                a.cfg.Risk.MaxVaR,
			CriticalVaR:           a.cfg.Risk.CriticalVaR,
			MaxDrawdown:           a.cfg.Risk.MaxDrawdown,
			CriticalDrawdown:      a.cfg.Risk.CriticalDrawdown,
			MaxConcentration:      a.cfg.Risk.MaxConcentration,
			CriticalConcentration: a.cfg.Risk.CriticalConcentration,
			HiddenCorrelationFlag: a.cfg.Risk.HiddenCorrelationFlag,
		},
		rules,
		a.logger,
	)
}

// newAggregator builds the results aggregator, honoring the configured
// portfolio-recommendations toggle.
func (a *App) newAggregator() *report.Aggregator {
	agg := report.NewAggregator()
	agg.EmitRecommendations = a.cfg.Risk.PortfolioRecommendations
	return agg
}

// PipelineMode runs the full flow: websocket feed, batch tick processing,
// correlation, detection, validation, and publication of approved positions.
// It blocks until the context is cancelled or the feed closes for good.
func (a *App) PipelineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting pipeline mode",
		slog.String("feed", a.cfg.Feed.WsURL),
	)

	source := feed.NewWSSource(feed.WSConfig{
		URL:              a.cfg.Feed.WsURL,
		ReconnectMax:     a.cfg.Feed.ReconnectMax,
		ReconnectBackoff: a.cfg.Feed.ReconnectBackoff.Duration,
		DedupTTL:         a.cfg.Feed.DedupTTL.Duration,
	}, a.logger)

	provider := processor.NewBundleProvider(deps.Ticks, deps.TickCache, deps.Logs)
	proc := processor.New(provider, deps.History, processor.Config{
		MaxConcurrency: a.cfg.Pipeline.MaxConcurrency,
		AcquireTimeout: a.cfg.Pipeline.AcquireTimeout.Duration,
		TickTimeout:    a.cfg.Pipeline.TickTimeout.Duration,
	}, a.logger)

	analyzer := correlation.New(deps.History, correlation.Config{
		MinCombinedScore: a.cfg.Correlation.MinCombinedScore,
		MaxTimeDelta:     a.cfg.Correlation.MaxTimeDelta.Duration,
		WindowPoints:     a.cfg.Correlation.WindowPoints,
		MinWindowPoints:  a.cfg.Correlation.MinWindowPoints,
	}, a.logger)

	det := detector.New(detector.Config{
		HedgeRatioFloor:  a.cfg.Detector.HedgeRatioFloor,
		HedgeRatioCeil:   a.cfg.Detector.HedgeRatioCeil,
		PositionTTL:      a.cfg.Detector.PositionTTL.Duration,
		ConfidenceWeight: a.cfg.Detector.ConfidenceWeight,
	}, a.logger)

	orch := pipeline.NewOrchestrator(
		source,
		proc,
		analyzer,
		det,
		a.newEngine(),
		a.newAggregator(),
		pipeline.Stores{
			Arbs:        deps.Arbs,
			Validations: deps.Validations,
			Audit:       deps.Audit,
		},
		deps.Publisher,
		pipeline.Config{
			BatchSize:     a.cfg.Pipeline.BatchSize,
			FlushInterval: a.cfg.Pipeline.FlushInterval.Duration,
		},
		a.logger,
	)

	return orch.Run(ctx)
}

// ValidateMode runs one re-validation sweep over stored pending and
// requires_review positions, records the new results, updates statuses, and
// publishes any that come out valid. It exits when the sweep completes.
func (a *App) ValidateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting validate mode")

	engine := a.newEngine()
	aggregator := a.newAggregator()

	var arbs []domain.SyntheticArbitrage
	for _, status := range []domain.ArbStatus{domain.ArbStatusPending, domain.ArbStatusRequiresReview} {
		list, err := deps.Arbs.ListByStatus(ctx, status, domain.ListOpts{Limit: validateSweepLimit})
		if err != nil {
			return fmt.Errorf("validate mode: list %s positions: %w", status, err)
		}
		arbs = append(arbs, list...)
	}
	if len(arbs) == 0 {
		a.logger.InfoContext(ctx, "validate mode: nothing to re-validate")
		return nil
	}

	byID := make(map[string]domain.SyntheticArbitrage, len(arbs))
	for _, arb := range arbs {
		byID[arb.ID] = arb
	}

	batch := engine.ValidateBatch(ctx, arbs)

	published := 0
	for _, vr := range batch.Results {
		if err := deps.Validations.Insert(ctx, vr); err != nil {
			a.logger.ErrorContext(ctx, "validate mode: record result",
				slog.String("arb_id", vr.ArbID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := deps.Arbs.UpdateStatus(ctx, vr.ArbID, vr.Status); err != nil {
			a.logger.ErrorContext(ctx, "validate mode: update status",
				slog.String("arb_id", vr.ArbID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if vr.Status != domain.ArbStatusValid || deps.Publisher == nil {
			continue
		}
		arb := byID[vr.ArbID]
		arb.Status = vr.Status
		if err := deps.Publisher.PublishApproved(ctx, arb, []domain.ValidationResult{vr}); err != nil {
			a.logger.ErrorContext(ctx, "validate mode: publish approved",
				slog.String("arb_id", vr.ArbID),
				slog.String("error", err.Error()),
			)
			continue
		}
		published++
	}

	summary := aggregator.Summarize(batch)
	a.logger.InfoContext(ctx, "re-validation sweep complete",
		slog.Int("total", summary.Total),
		slog.Int("valid", summary.Valid),
		slog.Int("invalid", summary.Invalid),
		slog.Int("requires_review", summary.RequiresReview),
		slog.Int("published", published),
		slog.Float64("mean_score", summary.MeanScore),
	)

	if deps.Audit != nil {
		if err := deps.Audit.Log(ctx, "revalidation_sweep", map[string]any{
			"total":           summary.Total,
			"valid":           summary.Valid,
			"invalid":         summary.Invalid,
			"requires_review": summary.RequiresReview,
			"published":       published,
		}); err != nil {
			a.logger.WarnContext(ctx, "validate mode: audit write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// MonitorMode periodically summarizes the latest validation outcome of
// recent positions. It is read-only and runs until the context is cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Duration("interval", monitorInterval),
	)

	aggregator := a.newAggregator()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		if err := a.monitorPass(ctx, deps, aggregator); err != nil {
			a.logger.ErrorContext(ctx, "monitor pass failed",
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// monitorPass builds one summary from the latest validation result of each
// recent position.
func (a *App) monitorPass(ctx context.Context, deps *Dependencies, aggregator *report.Aggregator) error {
	arbs, err := deps.Arbs.ListRecent(ctx, monitorRecentLimit)
	if err != nil {
		return fmt.Errorf("list recent positions: %w", err)
	}

	var results []domain.ValidationResult
	unvalidated := 0
	for _, arb := range arbs {
		vr, err := deps.Validations.Latest(ctx, arb.ID)
		if errors.Is(err, domain.ErrNotFound) {
			unvalidated++
			continue
		}
		if err != nil {
			return fmt.Errorf("latest validation for %s: %w", arb.ID, err)
		}
		results = append(results, vr)
	}

	summary := aggregator.Summarize(domain.BatchValidationResult{Results: results})
	a.logger.InfoContext(ctx, "portfolio summary",
		slog.Int("positions", len(arbs)),
		slog.Int("unvalidated", unvalidated),
		slog.Int("valid", summary.Valid),
		slog.Int("invalid", summary.Invalid),
		slog.Int("requires_review", summary.RequiresReview),
		slog.Float64("mean_score", summary.MeanScore),
		slog.Float64("median_score", summary.MedianScore),
		slog.Any("recommendations", summary.Recommendations),
	)
	return nil
}
