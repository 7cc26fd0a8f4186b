package domain

import "time"

// CombinationCandidate pairs two processed ticks for the same event whose
// combined correlation score cleared the configured threshold. Candidates are
// ephemeral: constructed by the correlation analyzer, consumed by the
// detector, never persisted on their own.
type CombinationCandidate struct {
	EventID   string
	Primary   ProcessedTick
	Secondary ProcessedTick

	// Independent sub-scores, each in [0, 1].
	CompatibilityScore float64
	TimingScore        float64
	PriceCorrelation   float64

	// Score is the combined correlation score in [0, 1].
	Score float64
}

// ArbStatus is the lifecycle state of a synthetic arbitrage position. A
// position never transitions backward except through an explicit
// re-validation pass that produces a new ValidationResult.
type ArbStatus string

const (
	ArbStatusPending        ArbStatus = "pending"
	ArbStatusValidating     ArbStatus = "validating"
	ArbStatusValid          ArbStatus = "valid"
	ArbStatusInvalid        ArbStatus = "invalid"
	ArbStatusRequiresReview ArbStatus = "requires_review"
	ArbStatusExecuted       ArbStatus = "executed"
	ArbStatusFailed         ArbStatus = "failed"
)

// SyntheticArbitrage is a candidate combined position across two correlated
// markets. It is the central entity of the pipeline; its status is the state
// machine tracked through the validation engine.
type SyntheticArbitrage struct {
	ID            string
	EventID       string
	PrimaryLeg    ProcessedTick
	SecondaryLeg  ProcessedTick
	ExpectedValue float64
	Confidence    float64
	KellyFraction float64
	HedgeRatio    float64
	Status        ArbStatus
	EntryAt       time.Time
	ExpiresAt     time.Time
}

// Legs returns both legs of the position, primary first.
func (a SyntheticArbitrage) Legs() [2]ProcessedTick {
	return [2]ProcessedTick{a.PrimaryLeg, a.SecondaryLeg}
}
