package validation

import (
	"context"
	"fmt"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// categoryRiskCeiling marks a soft ceiling breach; the engine downgrades the
// position to requires_review when it sees this category.
const (
	categoryRiskCeiling         = "risk_ceiling"
	categoryRiskCeilingCritical = "risk_ceiling_critical"
)

// riskValidator estimates value-at-risk, maximum drawdown, and concentration
// for the combined position and checks each against its soft and hard
// ceilings.
type riskValidator struct {
	limits RiskLimits
}

func newRiskValidator(limits RiskLimits) *riskValidator {
	return &riskValidator{limits: limits}
}

func (v *riskValidator) Dimension() domain.Dimension { return domain.DimensionRisk }

func (v *riskValidator) Validate(_ context.Context, arb domain.SyntheticArbitrage) domain.SubResult {
	var issues []domain.Issue
	dim := v.Dimension()

	// Total bankroll fraction staked across both legs.
	total := arb.KellyFraction * (1 + arb.HedgeRatio)

	ev := arb.ExpectedValue
	if ev < 0 {
		ev = 0
	}
	if ev > 1 {
		ev = 1
	}
	// Worst case both legs settle against us; the edge offsets part of the
	// loss in expectation.
	valueAtRisk := total * (1 - ev)
	drawdown := total
	concentration := largestLegShare(arb.HedgeRatio)

	issues = append(issues, checkCeiling(dim, "value_at_risk", valueAtRisk,
		v.limits.MaxVaR, v.limits.CriticalVaR)...)
	issues = append(issues, checkCeiling(dim, "max_drawdown", drawdown,
		v.limits.MaxDrawdown, v.limits.CriticalDrawdown)...)
	issues = append(issues, checkCeiling(dim, "concentration", concentration,
		v.limits.MaxConcentration, v.limits.CriticalConcentration)...)

	return subResult(dim, issues)
}

// checkCeiling classifies value against its two ceilings: above the hard
// ceiling is a critical issue, above the soft ceiling a warning carrying the
// requires_review category.
func checkCeiling(dim domain.Dimension, metric string, value, soft, hard float64) []domain.Issue {
	switch {
	case hard > 0 && value > hard:
		return []domain.Issue{issue(domain.SeverityCritical, categoryRiskCeilingCritical, dim,
			fmt.Sprintf("%s %.4f exceeds the hard ceiling %.4f", metric, value, hard))}
	case soft > 0 && value > soft:
		return []domain.Issue{issue(domain.SeverityWarning, categoryRiskCeiling, dim,
			fmt.Sprintf("%s %.4f exceeds the soft ceiling %.4f", metric, value, soft))}
	}
	return nil
}

// largestLegShare is the fraction of the combined stake carried by the bigger
// leg. A ratio of 1 splits evenly at 0.5; ratios far from 1 concentrate the
// stake in one leg.
func largestLegShare(hedgeRatio float64) float64 {
	if hedgeRatio <= 0 {
		return 1
	}
	larger := 1.0
	if hedgeRatio > 1 {
		larger = hedgeRatio
	}
	return larger / (1 + hedgeRatio)
}
