package domain

import "time"

// Severity ranks how serious a validation issue is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Dimension names one independent validation check.
type Dimension string

const (
	DimensionMarket    Dimension = "market"
	DimensionPosition  Dimension = "position"
	DimensionRisk      Dimension = "risk"
	DimensionExecution Dimension = "execution"
	DimensionSport     Dimension = "sport"
)

// Issue is a single finding produced by a sub-validator. One tagged type is
// shared across all dimensions rather than one bespoke type per dimension.
type Issue struct {
	Severity  Severity
	Category  string
	Dimension Dimension
	Message   string
}

// SubResult is the outcome of one sub-validator.
type SubResult struct {
	Dimension Dimension
	Valid     bool
	Score     float64 // 0-100
	Issues    []Issue
}

// ValidationResult is one evaluation outcome for a synthetic arbitrage.
// Multiple passes over the same scenario each produce a new result, forming
// an append-only history keyed by scenario id and timestamp.
type ValidationResult struct {
	ID         string
	ArbID      string
	ScenarioID string
	Valid      bool
	Status     ArbStatus
	Score      float64 // 0-100, unweighted mean of sub-scores
	SubResults []SubResult
	CreatedAt  time.Time
}

// issuesBySeverity collects issues across all sub-results matching any of the
// given severities, preserving sub-validator order.
func (r ValidationResult) issuesBySeverity(severities ...Severity) []Issue {
	var out []Issue
	for _, sub := range r.SubResults {
		for _, is := range sub.Issues {
			for _, sev := range severities {
				if is.Severity == sev {
					out = append(out, is)
					break
				}
			}
		}
	}
	return out
}

// Errors returns all error and critical issues in sub-validator order.
func (r ValidationResult) Errors() []Issue {
	return r.issuesBySeverity(SeverityError, SeverityCritical)
}

// Warnings returns all warning issues in sub-validator order.
func (r ValidationResult) Warnings() []Issue {
	return r.issuesBySeverity(SeverityWarning)
}

// Suggestions returns all informational issues in sub-validator order.
func (r ValidationResult) Suggestions() []Issue {
	return r.issuesBySeverity(SeverityInfo)
}

// CriticalCount returns the number of critical issues across all dimensions.
// Valid == true requires CriticalCount() == 0.
func (r ValidationResult) CriticalCount() int {
	n := 0
	for _, sub := range r.SubResults {
		for _, is := range sub.Issues {
			if is.Severity == SeverityCritical {
				n++
			}
		}
	}
	return n
}

// CrossCorrelation is the pairwise market overlap between two candidates in a
// batch, used to flag hidden risk concentration.
type CrossCorrelation struct {
	ArbIDA      string
	ArbIDB      string
	Correlation float64 // [0, 1]
}

// BatchValidationResult bundles per-candidate results with the
// portfolio-level cross-candidate analysis. The analysis never alters the
// individual results.
type BatchValidationResult struct {
	Results           []ValidationResult
	CrossCorrelations []CrossCorrelation
	RiskClusters      [][]string // groups of arb IDs with correlated exposure
}
