package validation

import "github.com/synthbet/arbpipeline/internal/domain"

// RuleSet is a pluggable sport-specific validator. Rule sets run after the
// four mandatory dimensions and report on the sport dimension; they follow the
// same independence contract, so a failing rule set never blocks the rest.
type RuleSet interface {
	Name() string
	// AppliesTo reports whether the rule set has jurisdiction over arb.
	AppliesTo(arb domain.SyntheticArbitrage) bool
	Apply(arb domain.SyntheticArbitrage) []domain.Issue
}
