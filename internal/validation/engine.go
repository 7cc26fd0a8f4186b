// Package validation judges synthetic arbitrage positions across four
// mandatory dimensions plus pluggable sport rule sets, producing structured
// results with per-dimension issues and scores.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// Config holds the market, position, and execution validator parameters.
type Config struct {
	AllowedExchanges []string
	AllowedMarkets   []string
	MaxKellyFraction float64
	MinExpectedValue float64
	MinConfidence    float64
	MaxQuoteAge      time.Duration
}

// RiskLimits holds the risk ceilings. Each metric has a soft ceiling that
// downgrades the position to requires_review and a hard ceiling that forces
// invalid.
type RiskLimits struct {
	MaxVaR                float64
	CriticalVaR           float64
	MaxDrawdown           float64
	CriticalDrawdown      float64
	MaxConcentration      float64
	CriticalConcentration float64
	// HiddenCorrelationFlag is the pairwise correlation above which two
	// batch candidates are clustered as concentrated exposure.
	HiddenCorrelationFlag float64
}

// SubValidator checks one dimension of a position. Implementations must be
// independent of each other; the engine runs all of them regardless of
// individual outcomes.
type SubValidator interface {
	Dimension() domain.Dimension
	Validate(ctx context.Context, arb domain.SyntheticArbitrage) domain.SubResult
}

// Engine composes the four mandatory sub-validators with any registered rule
// sets. The sub-validator order is fixed: market, position, risk, execution.
type Engine struct {
	subs   []SubValidator
	rules  []RuleSet
	limits RiskLimits
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(cfg Config, limits RiskLimits, rules []RuleSet, logger *slog.Logger) *Engine {
	e := &Engine{
		rules:  rules,
		limits: limits,
		logger: logger.With(slog.String("component", "validation_engine")),
		now:    time.Now,
	}
	e.subs = []SubValidator{
		newMarketValidator(cfg),
		newPositionValidator(cfg),
		newRiskValidator(limits),
		newExecutionValidator(cfg, func() time.Time { return e.now() }),
	}
	return e
}

// Validate runs every sub-validator and applicable rule set against arb and
// composes the overall result. All dimensions always execute; a panic in one
// sub-validator is recovered and recorded as a critical issue on its
// dimension without stopping the others.
func (e *Engine) Validate(ctx context.Context, arb domain.SyntheticArbitrage) domain.ValidationResult {
	subResults := make([]domain.SubResult, 0, len(e.subs)+len(e.rules))
	for _, sub := range e.subs {
		subResults = append(subResults, e.runSub(ctx, sub, arb))
	}
	for _, rs := range e.rules {
		if !rs.AppliesTo(arb) {
			continue
		}
		subResults = append(subResults, e.runRuleSet(rs, arb))
	}

	var scoreSum float64
	allValid := true
	review := false
	for _, sub := range subResults {
		scoreSum += sub.Score
		if !sub.Valid {
			allValid = false
		}
		for _, is := range sub.Issues {
			if is.Category == categoryRiskCeiling {
				review = true
			}
		}
	}

	result := domain.ValidationResult{
		ID:         uuid.NewString(),
		ArbID:      arb.ID,
		ScenarioID: arb.EventID,
		Score:      scoreSum / float64(len(subResults)),
		SubResults: subResults,
		CreatedAt:  e.now().UTC(),
	}

	// Any critical issue forces overall invalidity regardless of score.
	switch {
	case result.CriticalCount() > 0 || !allValid:
		result.Valid = false
		result.Status = domain.ArbStatusInvalid
	case review:
		result.Valid = true
		result.Status = domain.ArbStatusRequiresReview
	default:
		result.Valid = true
		result.Status = domain.ArbStatusValid
	}

	e.logger.Debug("position validated",
		slog.String("arb_id", arb.ID),
		slog.String("status", string(result.Status)),
		slog.Float64("score", result.Score),
	)
	return result
}

func (e *Engine) runSub(ctx context.Context, sub SubValidator, arb domain.SyntheticArbitrage) (result domain.SubResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sub-validator panicked",
				slog.String("dimension", string(sub.Dimension())),
				slog.Any("panic", r),
			)
			result = domain.SubResult{
				Dimension: sub.Dimension(),
				Valid:     false,
				Score:     0,
				Issues: []domain.Issue{{
					Severity:  domain.SeverityCritical,
					Category:  "validator_panic",
					Dimension: sub.Dimension(),
					Message:   fmt.Sprintf("validator panicked: %v", r),
				}},
			}
		}
	}()
	return sub.Validate(ctx, arb)
}

func (e *Engine) runRuleSet(rs RuleSet, arb domain.SyntheticArbitrage) (result domain.SubResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule set panicked",
				slog.String("rule_set", rs.Name()),
				slog.Any("panic", r),
			)
			result = domain.SubResult{
				Dimension: domain.DimensionSport,
				Valid:     false,
				Score:     0,
				Issues: []domain.Issue{{
					Severity:  domain.SeverityCritical,
					Category:  "validator_panic",
					Dimension: domain.DimensionSport,
					Message:   fmt.Sprintf("rule set %s panicked: %v", rs.Name(), r),
				}},
			}
		}
	}()
	return subResult(domain.DimensionSport, rs.Apply(arb))
}
