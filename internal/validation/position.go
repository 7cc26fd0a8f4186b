package validation

import (
	"context"
	"fmt"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// positionValidator checks the internal consistency of the constructed
// position: sizing, edge, confidence, and lifecycle fields.
type positionValidator struct {
	cfg Config
}

func newPositionValidator(cfg Config) *positionValidator {
	return &positionValidator{cfg: cfg}
}

func (v *positionValidator) Dimension() domain.Dimension { return domain.DimensionPosition }

func (v *positionValidator) Validate(_ context.Context, arb domain.SyntheticArbitrage) domain.SubResult {
	var issues []domain.Issue
	dim := v.Dimension()

	switch {
	case arb.KellyFraction <= 0:
		issues = append(issues, issue(domain.SeverityError, "kelly_nonpositive", dim,
			fmt.Sprintf("kelly fraction %v leaves nothing to stake", arb.KellyFraction)))
	case arb.KellyFraction > v.cfg.MaxKellyFraction:
		issues = append(issues, issue(domain.SeverityError, "kelly_exceeds_limit", dim,
			fmt.Sprintf("kelly fraction %v exceeds limit %v", arb.KellyFraction, v.cfg.MaxKellyFraction)))
	}

	if arb.ExpectedValue < v.cfg.MinExpectedValue {
		issues = append(issues, issue(domain.SeverityError, "insufficient_edge", dim,
			fmt.Sprintf("expected value %v below minimum %v", arb.ExpectedValue, v.cfg.MinExpectedValue)))
	} else if arb.ExpectedValue < 2*v.cfg.MinExpectedValue {
		issues = append(issues, issue(domain.SeverityInfo, "thin_edge", dim,
			fmt.Sprintf("expected value %v barely clears minimum %v", arb.ExpectedValue, v.cfg.MinExpectedValue)))
	}

	if arb.Confidence < v.cfg.MinConfidence {
		issues = append(issues, issue(domain.SeverityWarning, "low_confidence", dim,
			fmt.Sprintf("confidence %v below minimum %v", arb.Confidence, v.cfg.MinConfidence)))
	}

	if arb.HedgeRatio <= 0 {
		issues = append(issues, issue(domain.SeverityError, "hedge_ratio_invalid", dim,
			fmt.Sprintf("hedge ratio %v cannot size the secondary leg", arb.HedgeRatio)))
	}

	if !arb.ExpiresAt.After(arb.EntryAt) {
		issues = append(issues, issue(domain.SeverityError, "expiry_before_entry", dim,
			"position expires at or before entry"))
	}

	switch arb.Status {
	case domain.ArbStatusPending, domain.ArbStatusValidating, domain.ArbStatusRequiresReview:
	default:
		issues = append(issues, issue(domain.SeverityWarning, "unexpected_status", dim,
			fmt.Sprintf("position already in state %s", arb.Status)))
	}

	return subResult(dim, issues)
}
