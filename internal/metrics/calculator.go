// Package metrics provides the pure per-tick derived metrics: implied
// probability, Kelly fraction, and expected value. All functions are
// stateless and never block.
package metrics

import (
	"fmt"
	"math"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// ImpliedProbability converts American odds to the probability the price
// implies, ignoring bookmaker margin. Positive odds: 100/(price+100).
// Negative odds: |price|/(|price|+100). Zero odds are undefined and rejected.
func ImpliedProbability(price float64) (float64, error) {
	if price == 0 {
		return 0, domain.ErrPriceZero
	}
	if price > 0 {
		return 100 / (price + 100), nil
	}
	abs := math.Abs(price)
	return abs / (abs + 100), nil
}

// KellyFraction returns the recommended bankroll fraction for the given edge
// against the combined implied probability of both sides. A fully efficient
// market (zero denominator only arises from zero edge configurations on
// degenerate inputs) yields zero rather than an error, since a zero-edge
// setup is a valid if uninteresting input.
func KellyFraction(homePrice, awayPrice, edge float64) (float64, error) {
	ph, err := ImpliedProbability(homePrice)
	if err != nil {
		return 0, fmt.Errorf("metrics: home price: %w", err)
	}
	pa, err := ImpliedProbability(awayPrice)
	if err != nil {
		return 0, fmt.Errorf("metrics: away price: %w", err)
	}
	denom := ph + pa
	if denom == 0 {
		return 0, nil
	}
	return edge / denom, nil
}

// ExpectedValue returns the absolute pricing inefficiency of the observed
// home price against the fair odds implied by the away side's complementary
// probability. It is not symmetric under swapping the arguments, but a
// consistent double swap of the pair is idempotent.
func ExpectedValue(homePrice, awayPrice float64) (float64, error) {
	ph, err := ImpliedProbability(homePrice)
	if err != nil {
		return 0, fmt.Errorf("metrics: home price: %w", err)
	}
	pa, err := ImpliedProbability(awayPrice)
	if err != nil {
		return 0, fmt.Errorf("metrics: away price: %w", err)
	}
	// Fair probability for the home side is the complement of the away
	// side's implied probability.
	fairHome := 1 - pa
	return math.Abs(fairHome - ph), nil
}

// AmericanToDecimal converts American odds to decimal odds.
func AmericanToDecimal(american float64) (float64, error) {
	if american == 0 {
		return 0, domain.ErrPriceZero
	}
	if american > 0 {
		return american/100 + 1, nil
	}
	return 100/math.Abs(american) + 1, nil
}

// DecimalToAmerican converts decimal odds back to American odds.
func DecimalToAmerican(decimal float64) (float64, error) {
	if decimal <= 1 {
		return 0, fmt.Errorf("metrics: decimal odds must be > 1, got %v", decimal)
	}
	if decimal >= 2 {
		return math.Round((decimal - 1) * 100), nil
	}
	return math.Round(-100 / (decimal - 1)), nil
}

// ProbabilityToAmerican converts a probability in (0, 1) to the American odds
// that imply it exactly.
func ProbabilityToAmerican(p float64) (float64, error) {
	if p <= 0 || p >= 1 {
		return 0, fmt.Errorf("metrics: probability must be in (0, 1), got %v", p)
	}
	if p >= 0.5 {
		return -(p / (1 - p)) * 100, nil
	}
	return ((1 - p) / p) * 100, nil
}

// OpposingFair returns the American odds of a perfectly efficient opposing
// side for the given price: the odds implying the complement probability.
// Used as the fallback when no live opposing quote is available, in which
// case expected value and Kelly both collapse to zero.
func OpposingFair(price float64) (float64, error) {
	p, err := ImpliedProbability(price)
	if err != nil {
		return 0, err
	}
	return ProbabilityToAmerican(1 - p)
}

// Compute derives the full metrics block for one tick against its opposing
// side's price.
func Compute(tick domain.OddsTick, opposingPrice float64) (domain.TickMetrics, error) {
	prob, err := ImpliedProbability(tick.Price)
	if err != nil {
		return domain.TickMetrics{}, err
	}
	ev, err := ExpectedValue(tick.Price, opposingPrice)
	if err != nil {
		return domain.TickMetrics{}, err
	}
	kelly, err := KellyFraction(tick.Price, opposingPrice, ev)
	if err != nil {
		return domain.TickMetrics{}, err
	}
	return domain.TickMetrics{
		ImpliedProbability: prob,
		KellyFraction:      kelly,
		ExpectedValue:      ev,
	}, nil
}
