package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// marketValidator checks that both legs quote real, tradeable markets: known
// exchanges, permitted market types, legs on the same event, and prices that
// are well-formed American odds.
type marketValidator struct {
	exchanges map[string]bool
	markets   map[string]bool
}

func newMarketValidator(cfg Config) *marketValidator {
	v := &marketValidator{
		exchanges: make(map[string]bool, len(cfg.AllowedExchanges)),
		markets:   make(map[string]bool, len(cfg.AllowedMarkets)),
	}
	for _, e := range cfg.AllowedExchanges {
		v.exchanges[e] = true
	}
	for _, m := range cfg.AllowedMarkets {
		v.markets[m] = true
	}
	return v
}

func (v *marketValidator) Dimension() domain.Dimension { return domain.DimensionMarket }

func (v *marketValidator) Validate(_ context.Context, arb domain.SyntheticArbitrage) domain.SubResult {
	var issues []domain.Issue
	dim := v.Dimension()

	if arb.EventID == "" {
		issues = append(issues, issue(domain.SeverityError, "missing_event", dim,
			"position has no event identifier"))
	}

	legs := []struct {
		name string
		leg  domain.ProcessedTick
	}{
		{"primary", arb.PrimaryLeg},
		{"secondary", arb.SecondaryLeg},
	}
	for _, l := range legs {
		name, leg := l.name, l.leg
		if len(v.exchanges) > 0 && !v.exchanges[leg.Exchange] {
			issues = append(issues, issue(domain.SeverityError, "exchange_not_allowed", dim,
				fmt.Sprintf("%s leg quotes exchange %q outside the allowed set", name, leg.Exchange)))
		}
		if len(v.markets) > 0 && !v.markets[string(leg.MarketType)] {
			issues = append(issues, issue(domain.SeverityError, "market_not_allowed", dim,
				fmt.Sprintf("%s leg market type %q outside the allowed set", name, leg.MarketType)))
		}
		if math.Abs(leg.Price) < 100 {
			issues = append(issues, issue(domain.SeverityError, "malformed_odds", dim,
				fmt.Sprintf("%s leg price %v is not valid American odds", name, leg.Price)))
		}
	}

	if arb.PrimaryLeg.EventID != arb.SecondaryLeg.EventID {
		issues = append(issues, issue(domain.SeverityCritical, "event_mismatch", dim,
			fmt.Sprintf("legs reference different events: %s vs %s",
				arb.PrimaryLeg.EventID, arb.SecondaryLeg.EventID)))
	}
	if arb.PrimaryLeg.MarketID == arb.SecondaryLeg.MarketID {
		issues = append(issues, issue(domain.SeverityError, "duplicate_market", dim,
			fmt.Sprintf("both legs quote market %s", arb.PrimaryLeg.MarketID)))
	}

	return subResult(dim, issues)
}
