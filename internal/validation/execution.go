package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// executionValidator checks whether the position can still be put on: quote
// freshness and position expiry relative to the wall clock.
type executionValidator struct {
	cfg Config
	now func() time.Time
}

func newExecutionValidator(cfg Config, now func() time.Time) *executionValidator {
	return &executionValidator{cfg: cfg, now: now}
}

func (v *executionValidator) Dimension() domain.Dimension { return domain.DimensionExecution }

func (v *executionValidator) Validate(_ context.Context, arb domain.SyntheticArbitrage) domain.SubResult {
	var issues []domain.Issue
	dim := v.Dimension()
	now := v.now()

	if !arb.ExpiresAt.IsZero() && !arb.ExpiresAt.After(now) {
		issues = append(issues, issue(domain.SeverityError, "position_expired", dim,
			fmt.Sprintf("position expired at %s", arb.ExpiresAt.Format(time.RFC3339))))
	}

	legs := []struct {
		name string
		leg  domain.ProcessedTick
	}{
		{"primary", arb.PrimaryLeg},
		{"secondary", arb.SecondaryLeg},
	}
	for _, l := range legs {
		age := now.Sub(l.leg.ObservedAt)
		if v.cfg.MaxQuoteAge > 0 && age > v.cfg.MaxQuoteAge {
			issues = append(issues, issue(domain.SeverityError, "stale_quote", dim,
				fmt.Sprintf("%s leg quote is %s old, limit %s", l.name, age.Round(time.Millisecond), v.cfg.MaxQuoteAge)))
		}
	}

	if arb.PrimaryLeg.Exchange != arb.SecondaryLeg.Exchange {
		issues = append(issues, issue(domain.SeverityInfo, "cross_book_execution", dim,
			fmt.Sprintf("legs settle on different books: %s and %s",
				arb.PrimaryLeg.Exchange, arb.SecondaryLeg.Exchange)))
	}

	return subResult(dim, issues)
}
