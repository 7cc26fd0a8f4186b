// Package report reduces validation output into summaries and portfolio
// recommendations. Everything here is read-only over its inputs.
package report

import (
	"sort"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// Recommendation is a portfolio-level action derived from batch analysis.
type Recommendation string

const (
	RecommendDiversify   Recommendation = "diversify"
	RecommendConcentrate Recommendation = "concentrate"
	RecommendRebalance   Recommendation = "rebalance"
	RecommendHedge       Recommendation = "hedge"
)

// ScoreBucket is one band of the score distribution.
type ScoreBucket struct {
	// Low and High bound the band: Low <= score < High, except the top
	// band which includes 100.
	Low   float64
	High  float64
	Count int
}

// Summary is the aggregate view over one batch validation pass.
type Summary struct {
	Total          int
	Valid          int
	Invalid        int
	RequiresReview int
	MeanScore      float64
	MedianScore    float64
	Distribution   []ScoreBucket
	// ClusteredArbs counts positions caught in at least one risk cluster.
	ClusteredArbs   int
	Recommendations []Recommendation
}

// Aggregator reduces batch validation results. Stateless; safe for
// concurrent use.
type Aggregator struct {
	// ClusterShareForDiversify is the fraction of candidates that must sit
	// in risk clusters before a diversify recommendation is issued.
	ClusterShareForDiversify float64
	// ReviewShareForRebalance is the fraction of requires_review outcomes
	// that triggers a rebalance recommendation.
	ReviewShareForRebalance float64
	// EmitRecommendations toggles portfolio recommendations; when false,
	// Summaries carry counts and scores only.
	EmitRecommendations bool
}

// NewAggregator returns an Aggregator with the default thresholds.
func NewAggregator() *Aggregator {
	return &Aggregator{
		ClusterShareForDiversify: 0.3,
		ReviewShareForRebalance:  0.25,
		EmitRecommendations:      true,
	}
}

// Summarize reduces one batch result into a Summary.
func (a *Aggregator) Summarize(batch domain.BatchValidationResult) Summary {
	s := Summary{Total: len(batch.Results)}
	if s.Total == 0 {
		return s
	}

	scores := make([]float64, 0, len(batch.Results))
	for _, r := range batch.Results {
		scores = append(scores, r.Score)
		s.MeanScore += r.Score
		switch r.Status {
		case domain.ArbStatusValid:
			s.Valid++
		case domain.ArbStatusRequiresReview:
			s.RequiresReview++
		default:
			s.Invalid++
		}
	}
	s.MeanScore /= float64(s.Total)
	s.MedianScore = median(scores)
	s.Distribution = distribution(scores)

	clustered := make(map[string]bool)
	for _, cluster := range batch.RiskClusters {
		for _, id := range cluster {
			clustered[id] = true
		}
	}
	s.ClusteredArbs = len(clustered)

	if a.EmitRecommendations {
		s.Recommendations = a.recommend(batch, s)
	}
	return s
}

// recommend derives portfolio actions from the cross-candidate analysis.
// With no clusters and no correlated exposure the portfolio is left alone:
// independent candidates carry no signal for concentrating or spreading
// stake, so no recommendation is made at all.
func (a *Aggregator) recommend(batch domain.BatchValidationResult, s Summary) []Recommendation {
	var recs []Recommendation

	clusterShare := float64(s.ClusteredArbs) / float64(s.Total)
	if clusterShare >= a.ClusterShareForDiversify {
		recs = append(recs, RecommendDiversify)
	}

	// Any cluster whose members are all valid is hidden concentration worth
	// hedging even when the overall share is small.
	if len(batch.RiskClusters) > 0 && !contains(recs, RecommendDiversify) {
		recs = append(recs, RecommendHedge)
	}

	reviewShare := float64(s.RequiresReview) / float64(s.Total)
	if reviewShare >= a.ReviewShareForRebalance {
		recs = append(recs, RecommendRebalance)
	}

	// Measured overlap that never rose to a cluster on a uniformly strong
	// all-valid set: the shared exposure is known and benign, so stake can
	// concentrate into the best candidates. Without correlation data the
	// candidates are independent and concentrating is never suggested.
	if len(batch.CrossCorrelations) > 0 && len(batch.RiskClusters) == 0 &&
		s.Valid == s.Total && s.MeanScore >= 90 && s.Total >= 2 {
		recs = append(recs, RecommendConcentrate)
	}

	return recs
}

func contains(recs []Recommendation, want Recommendation) bool {
	for _, r := range recs {
		if r == want {
			return true
		}
	}
	return false
}

func median(scores []float64) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// distribution buckets scores into five 20-point bands.
func distribution(scores []float64) []ScoreBucket {
	buckets := []ScoreBucket{
		{Low: 0, High: 20},
		{Low: 20, High: 40},
		{Low: 40, High: 60},
		{Low: 60, High: 80},
		{Low: 80, High: 100},
	}
	for _, sc := range scores {
		idx := int(sc / 20)
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		buckets[idx].Count++
	}
	return buckets
}
