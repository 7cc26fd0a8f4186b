package validation

import "github.com/synthbet/arbpipeline/internal/domain"

// Per-issue score deductions. A critical issue zeroes the dimension outright.
const (
	deductCritical = 100.0
	deductError    = 25.0
	deductWarning  = 10.0
	deductInfo     = 2.0
)

// subResult composes a SubResult from a dimension's issues. The dimension is
// valid when it carries no error or critical issues; warnings and suggestions
// only cost score.
func subResult(dim domain.Dimension, issues []domain.Issue) domain.SubResult {
	score := 100.0
	valid := true
	for _, is := range issues {
		switch is.Severity {
		case domain.SeverityCritical:
			score -= deductCritical
			valid = false
		case domain.SeverityError:
			score -= deductError
			valid = false
		case domain.SeverityWarning:
			score -= deductWarning
		case domain.SeverityInfo:
			score -= deductInfo
		}
	}
	if score < 0 {
		score = 0
	}
	return domain.SubResult{
		Dimension: dim,
		Valid:     valid,
		Score:     score,
		Issues:    issues,
	}
}

func issue(sev domain.Severity, category string, dim domain.Dimension, msg string) domain.Issue {
	return domain.Issue{
		Severity:  sev,
		Category:  category,
		Dimension: dim,
		Message:   msg,
	}
}
