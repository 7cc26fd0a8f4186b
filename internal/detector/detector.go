// Package detector constructs synthetic arbitrage positions from combination
// candidates. Construction only: every position starts in the pending state
// and judgment is left to the validation engine.
package detector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/metrics"
)

// Config holds the position construction policy.
type Config struct {
	// HedgeRatioFloor and HedgeRatioCeil clamp the computed hedge ratio.
	HedgeRatioFloor float64
	HedgeRatioCeil  float64
	// PositionTTL sets ExpiresAt relative to EntryAt.
	PositionTTL time.Duration
	// ConfidenceWeight scales the candidate's combined score into the
	// position confidence.
	ConfidenceWeight float64
}

// Detector builds pending positions from scored candidates.
type Detector struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_detector")),
		now:    time.Now,
	}
}

// Detect builds a SyntheticArbitrage from the candidate. The expected value
// and Kelly fraction come from the calculator over the two legs' prices; the
// hedge ratio is proportional to the legs' relative implied odds, clamped to
// the configured band.
func (d *Detector) Detect(cand domain.CombinationCandidate) (domain.SyntheticArbitrage, error) {
	ev, err := metrics.ExpectedValue(cand.Primary.Price, cand.Secondary.Price)
	if err != nil {
		return domain.SyntheticArbitrage{}, fmt.Errorf("detector: expected value: %w", err)
	}
	kelly, err := metrics.KellyFraction(cand.Primary.Price, cand.Secondary.Price, ev)
	if err != nil {
		return domain.SyntheticArbitrage{}, fmt.Errorf("detector: kelly fraction: %w", err)
	}
	hedge, err := d.hedgeRatio(cand.Primary.Price, cand.Secondary.Price)
	if err != nil {
		return domain.SyntheticArbitrage{}, fmt.Errorf("detector: hedge ratio: %w", err)
	}

	confidence := cand.Score * d.cfg.ConfidenceWeight
	if confidence > 1 {
		confidence = 1
	}

	entry := d.now().UTC()
	arb := domain.SyntheticArbitrage{
		ID:            uuid.NewString(),
		EventID:       cand.EventID,
		PrimaryLeg:    cand.Primary,
		SecondaryLeg:  cand.Secondary,
		ExpectedValue: ev,
		Confidence:    confidence,
		KellyFraction: kelly,
		HedgeRatio:    hedge,
		Status:        domain.ArbStatusPending,
		EntryAt:       entry,
		ExpiresAt:     entry.Add(d.cfg.PositionTTL),
	}

	d.logger.Debug("position constructed",
		slog.String("arb_id", arb.ID),
		slog.String("event_id", arb.EventID),
		slog.Float64("expected_value", ev),
		slog.Float64("hedge_ratio", hedge),
	)
	return arb, nil
}

// DetectAll builds positions for every candidate, skipping candidates whose
// legs cannot be priced and reporting how many were skipped.
func (d *Detector) DetectAll(cands []domain.CombinationCandidate) ([]domain.SyntheticArbitrage, int) {
	arbs := make([]domain.SyntheticArbitrage, 0, len(cands))
	var skipped int
	for _, cand := range cands {
		arb, err := d.Detect(cand)
		if err != nil {
			skipped++
			d.logger.Warn("candidate skipped",
				slog.String("event_id", cand.EventID),
				slog.String("error", err.Error()),
			)
			continue
		}
		arbs = append(arbs, arb)
	}
	return arbs, skipped
}

// hedgeRatio sizes the secondary leg relative to the primary in proportion to
// their decimal odds: the longer-priced leg carries the smaller stake.
func (d *Detector) hedgeRatio(primaryPrice, secondaryPrice float64) (float64, error) {
	pd, err := metrics.AmericanToDecimal(primaryPrice)
	if err != nil {
		return 0, err
	}
	sd, err := metrics.AmericanToDecimal(secondaryPrice)
	if err != nil {
		return 0, err
	}
	ratio := pd / sd
	if ratio < d.cfg.HedgeRatioFloor {
		ratio = d.cfg.HedgeRatioFloor
	}
	if ratio > d.cfg.HedgeRatioCeil {
		ratio = d.cfg.HedgeRatioCeil
	}
	return ratio, nil
}
