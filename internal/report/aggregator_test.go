package report

import (
	"testing"

	"github.com/synthbet/arbpipeline/internal/domain"
)

func result(arbID string, status domain.ArbStatus, score float64) domain.ValidationResult {
	return domain.ValidationResult{
		ID:     "vr-" + arbID,
		ArbID:  arbID,
		Valid:  status == domain.ArbStatusValid || status == domain.ArbStatusRequiresReview,
		Status: status,
		Score:  score,
	}
}

func TestSummarizeCounts(t *testing.T) {
	a := NewAggregator()
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 95),
			result("b", domain.ArbStatusValid, 85),
			result("c", domain.ArbStatusInvalid, 40),
			result("d", domain.ArbStatusRequiresReview, 70),
		},
	}

	s := a.Summarize(batch)
	if s.Total != 4 || s.Valid != 2 || s.Invalid != 1 || s.RequiresReview != 1 {
		t.Fatalf("counts = %d/%d/%d/%d, want 4/2/1/1", s.Total, s.Valid, s.Invalid, s.RequiresReview)
	}
	if s.MeanScore != 72.5 {
		t.Fatalf("mean = %v, want 72.5", s.MeanScore)
	}
	if s.MedianScore != 77.5 {
		t.Fatalf("median = %v, want 77.5", s.MedianScore)
	}
}

func TestSummarizeEmptyBatch(t *testing.T) {
	s := NewAggregator().Summarize(domain.BatchValidationResult{})
	if s.Total != 0 || len(s.Recommendations) != 0 {
		t.Fatalf("empty batch summary = %+v", s)
	}
}

func TestScoreDistribution(t *testing.T) {
	scores := []float64{0, 19.9, 20, 55, 79.9, 80, 100, 100}
	buckets := distribution(scores)
	want := []int{2, 1, 1, 1, 3}
	for i, b := range buckets {
		if b.Count != want[i] {
			t.Fatalf("bucket %d count = %d, want %d", i, b.Count, want[i])
		}
	}
}

func TestRecommendationsIndependentStrongSet(t *testing.T) {
	a := NewAggregator()
	// Individually valid candidates with zero detected cross-correlation:
	// no overlap signal exists, so no recommendation may be made, and in
	// particular never concentrate.
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 95),
			result("b", domain.ArbStatusValid, 97),
			result("c", domain.ArbStatusValid, 93),
		},
	}

	s := a.Summarize(batch)
	if containsRec(s.Recommendations, RecommendConcentrate) {
		t.Fatalf("recs = %v; concentrate for a zero-correlation independent set", s.Recommendations)
	}
	if len(s.Recommendations) != 0 {
		t.Fatalf("recs = %v, want none", s.Recommendations)
	}
}

func TestRecommendationsCorrelatedUnclusteredStrongSet(t *testing.T) {
	a := NewAggregator()
	// Overlap was measured but stayed below the cluster flag, and every
	// candidate is valid and strong: concentrating stake is suggested.
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 95),
			result("b", domain.ArbStatusValid, 92),
			result("c", domain.ArbStatusValid, 98),
		},
		CrossCorrelations: []domain.CrossCorrelation{
			{ArbIDA: "a", ArbIDB: "b", Correlation: 0.25},
		},
	}

	s := a.Summarize(batch)
	if !containsRec(s.Recommendations, RecommendConcentrate) {
		t.Fatalf("recs = %v, want concentrate for measured benign overlap", s.Recommendations)
	}
	if containsRec(s.Recommendations, RecommendDiversify) || containsRec(s.Recommendations, RecommendHedge) {
		t.Fatalf("recs = %v; nothing to diversify or hedge", s.Recommendations)
	}
}

func TestRecommendationsDisabled(t *testing.T) {
	a := NewAggregator()
	a.EmitRecommendations = false
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 90),
			result("b", domain.ArbStatusValid, 88),
		},
		CrossCorrelations: []domain.CrossCorrelation{
			{ArbIDA: "a", ArbIDB: "b", Correlation: 0.75},
		},
		RiskClusters: [][]string{{"a", "b"}},
	}

	s := a.Summarize(batch)
	if len(s.Recommendations) != 0 {
		t.Fatalf("recs = %v, want none with recommendations disabled", s.Recommendations)
	}
	if s.ClusteredArbs != 2 {
		t.Fatalf("clustered = %d, want 2; disabling recommendations must not drop cluster counts", s.ClusteredArbs)
	}
}

func TestRecommendationsZeroCorrelationHasNoClusters(t *testing.T) {
	a := NewAggregator()
	// Independent valid candidates with zero cross-correlation carry no
	// cluster exposure and nothing to diversify.
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 95),
			result("b", domain.ArbStatusValid, 91),
		},
	}
	s := a.Summarize(batch)
	if s.ClusteredArbs != 0 {
		t.Fatalf("clustered = %d, want 0", s.ClusteredArbs)
	}
	if containsRec(s.Recommendations, RecommendDiversify) {
		t.Fatalf("recs = %v; diversify with zero correlation", s.Recommendations)
	}
}

func TestRecommendationsClusteredPortfolio(t *testing.T) {
	a := NewAggregator()
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 90),
			result("b", domain.ArbStatusValid, 88),
			result("c", domain.ArbStatusValid, 93),
		},
		CrossCorrelations: []domain.CrossCorrelation{
			{ArbIDA: "a", ArbIDB: "b", Correlation: 0.75},
		},
		RiskClusters: [][]string{{"a", "b"}},
	}

	s := a.Summarize(batch)
	if s.ClusteredArbs != 2 {
		t.Fatalf("clustered = %d, want 2", s.ClusteredArbs)
	}
	if !containsRec(s.Recommendations, RecommendDiversify) {
		t.Fatalf("recs = %v, want diversify at two of three clustered", s.Recommendations)
	}
	if containsRec(s.Recommendations, RecommendConcentrate) {
		t.Fatalf("recs = %v; concentrate despite correlated exposure", s.Recommendations)
	}
}

func TestRecommendationsSmallClusterHedges(t *testing.T) {
	a := NewAggregator()
	results := make([]domain.ValidationResult, 0, 10)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		results = append(results, result(id, domain.ArbStatusValid, 90))
	}
	batch := domain.BatchValidationResult{
		Results:           results,
		CrossCorrelations: []domain.CrossCorrelation{{ArbIDA: "a", ArbIDB: "b", Correlation: 0.8}},
		RiskClusters:      [][]string{{"a", "b"}},
	}

	s := a.Summarize(batch)
	// Two of ten clustered is below the diversify share; the cluster still
	// warrants a hedge.
	if containsRec(s.Recommendations, RecommendDiversify) {
		t.Fatalf("recs = %v; diversify below threshold", s.Recommendations)
	}
	if !containsRec(s.Recommendations, RecommendHedge) {
		t.Fatalf("recs = %v, want hedge for the isolated cluster", s.Recommendations)
	}
}

func TestRecommendationsReviewHeavyBatchRebalances(t *testing.T) {
	a := NewAggregator()
	batch := domain.BatchValidationResult{
		Results: []domain.ValidationResult{
			result("a", domain.ArbStatusValid, 90),
			result("b", domain.ArbStatusRequiresReview, 75),
			result("c", domain.ArbStatusRequiresReview, 72),
			result("d", domain.ArbStatusInvalid, 30),
		},
	}

	s := a.Summarize(batch)
	if !containsRec(s.Recommendations, RecommendRebalance) {
		t.Fatalf("recs = %v, want rebalance at half under review", s.Recommendations)
	}
}

func containsRec(recs []Recommendation, want Recommendation) bool {
	for _, r := range recs {
		if r == want {
			return true
		}
	}
	return false
}
