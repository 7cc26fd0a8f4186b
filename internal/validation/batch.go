package validation

import (
	"context"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// ValidateBatch validates every candidate individually, then layers pairwise
// cross-candidate analysis on top: shared events and markets between two
// otherwise independent positions are hidden concentration. The analysis
// never alters the per-candidate results.
func (e *Engine) ValidateBatch(ctx context.Context, arbs []domain.SyntheticArbitrage) domain.BatchValidationResult {
	batch := domain.BatchValidationResult{
		Results: make([]domain.ValidationResult, 0, len(arbs)),
	}
	for _, arb := range arbs {
		batch.Results = append(batch.Results, e.Validate(ctx, arb))
	}

	for i := 0; i < len(arbs); i++ {
		for j := i + 1; j < len(arbs); j++ {
			corr := crossCorrelation(arbs[i], arbs[j])
			if corr == 0 {
				continue
			}
			batch.CrossCorrelations = append(batch.CrossCorrelations, domain.CrossCorrelation{
				ArbIDA:      arbs[i].ID,
				ArbIDB:      arbs[j].ID,
				Correlation: corr,
			})
		}
	}

	batch.RiskClusters = clusters(arbs, batch.CrossCorrelations, e.limits.HiddenCorrelationFlag)
	return batch
}

// crossCorrelation estimates the exposure overlap of two positions in [0, 1].
// Sharing the event couples the positions through the game outcome; sharing
// an actual market couples them through the same order book.
func crossCorrelation(a, b domain.SyntheticArbitrage) float64 {
	var corr float64
	if a.EventID != "" && a.EventID == b.EventID {
		corr += 0.5
	}

	marketsA := map[string]bool{
		a.PrimaryLeg.MarketID:   true,
		a.SecondaryLeg.MarketID: true,
	}
	for _, leg := range b.Legs() {
		if marketsA[leg.MarketID] {
			corr += 0.25
		}
	}

	if corr > 1 {
		corr = 1
	}
	return corr
}

// clusters groups positions connected by correlations at or above the flag
// threshold. Singletons are not clusters.
func clusters(arbs []domain.SyntheticArbitrage, corrs []domain.CrossCorrelation, flag float64) [][]string {
	if flag <= 0 || len(arbs) < 2 {
		return nil
	}

	adj := make(map[string][]string)
	for _, c := range corrs {
		if c.Correlation < flag {
			continue
		}
		adj[c.ArbIDA] = append(adj[c.ArbIDA], c.ArbIDB)
		adj[c.ArbIDB] = append(adj[c.ArbIDB], c.ArbIDA)
	}
	if len(adj) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out [][]string
	for _, arb := range arbs {
		if seen[arb.ID] || len(adj[arb.ID]) == 0 {
			continue
		}
		// Breadth-first walk of the connected component, in insertion order.
		cluster := []string{arb.ID}
		seen[arb.ID] = true
		for k := 0; k < len(cluster); k++ {
			for _, next := range adj[cluster[k]] {
				if !seen[next] {
					seen[next] = true
					cluster = append(cluster, next)
				}
			}
		}
		out = append(out, cluster)
	}
	return out
}
