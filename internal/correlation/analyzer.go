// Package correlation pairs processed ticks of one event into combination
// candidates scored on market-type compatibility, timing alignment, and
// price correlation over a rolling window.
package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// Config holds the analyzer's scoring parameters.
type Config struct {
	// MinCombinedScore is the emission threshold; candidates scoring below
	// it are dropped.
	MinCombinedScore float64
	// MaxTimeDelta is the hard timing window; tick pairs observed further
	// apart are never paired.
	MaxTimeDelta time.Duration
	// WindowPoints is how many history points to fetch per market.
	WindowPoints int
	// MinWindowPoints is the minimum overlap needed to compute a price
	// correlation; below it the correlation sub-score is neutral.
	MinWindowPoints int
}

// Weights of the three sub-scores in the combined score. Compatibility
// dominates because it encodes which market pairs can actually hedge each
// other.
const (
	weightCompatibility = 0.4
	weightTiming        = 0.3
	weightCorrelation   = 0.3

	// neutralCorrelation is used when the rolling window is too short to
	// say anything about the pair.
	neutralCorrelation = 0.5
)

// Analyzer scores tick pairs per event and emits candidates above the
// configured threshold.
type Analyzer struct {
	history domain.PriceHistory
	cfg     Config
	logger  *slog.Logger
}

func New(history domain.PriceHistory, cfg Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		history: history,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "correlation_analyzer")),
	}
}

// Analyze pairs the given processed ticks within each event and returns the
// candidates whose combined score clears the threshold. At most one candidate
// is emitted per primary tick: on a shared primary the higher combined score
// wins, and on equal scores the most recently observed secondary wins.
func (a *Analyzer) Analyze(ctx context.Context, ticks []domain.ProcessedTick) ([]domain.CombinationCandidate, error) {
	byEvent := make(map[string][]domain.ProcessedTick)
	for _, t := range ticks {
		byEvent[t.EventID] = append(byEvent[t.EventID], t)
	}

	// Best candidate per primary tick hash.
	best := make(map[string]domain.CombinationCandidate)
	var order []string

	for _, group := range byEvent {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				primary, secondary := group[i], group[j]
				if primary.MarketID == secondary.MarketID {
					continue
				}

				cand, ok, err := a.score(ctx, primary, secondary)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}

				prev, seen := best[primary.TickHash]
				if !seen {
					best[primary.TickHash] = cand
					order = append(order, primary.TickHash)
					continue
				}
				if cand.Score > prev.Score ||
					(cand.Score == prev.Score && cand.Secondary.ObservedAt.After(prev.Secondary.ObservedAt)) {
					best[primary.TickHash] = cand
				}
			}
		}
	}

	out := make([]domain.CombinationCandidate, 0, len(order))
	for _, hash := range order {
		out = append(out, best[hash])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	a.logger.Debug("analysis complete",
		slog.Int("ticks", len(ticks)),
		slog.Int("candidates", len(out)),
	)
	return out, nil
}

func (a *Analyzer) score(ctx context.Context, primary, secondary domain.ProcessedTick) (domain.CombinationCandidate, bool, error) {
	delta := primary.ObservedAt.Sub(secondary.ObservedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > a.cfg.MaxTimeDelta {
		return domain.CombinationCandidate{}, false, nil
	}

	compat := compatibility(primary.MarketType, secondary.MarketType)
	timing := 1.0
	if a.cfg.MaxTimeDelta > 0 {
		timing = 1 - float64(delta)/float64(a.cfg.MaxTimeDelta)
	}

	corr, err := a.priceCorrelation(ctx, primary.MarketID, secondary.MarketID)
	if err != nil {
		return domain.CombinationCandidate{}, false, err
	}

	score := weightCompatibility*compat + weightTiming*timing + weightCorrelation*corr
	if score < a.cfg.MinCombinedScore {
		return domain.CombinationCandidate{}, false, nil
	}

	return domain.CombinationCandidate{
		EventID:            primary.EventID,
		Primary:            primary,
		Secondary:          secondary,
		CompatibilityScore: compat,
		TimingScore:        timing,
		PriceCorrelation:   corr,
		Score:              score,
	}, true, nil
}

// priceCorrelation computes the Pearson correlation strength of the two
// markets' recent price windows. Insufficient overlap scores neutral rather
// than zero, so thin history doesn't suppress pairs outright.
func (a *Analyzer) priceCorrelation(ctx context.Context, primaryID, secondaryID string) (float64, error) {
	pw, err := a.history.Window(ctx, primaryID, a.cfg.WindowPoints)
	if err != nil {
		return 0, fmt.Errorf("correlation: window for %s: %w", primaryID, err)
	}
	sw, err := a.history.Window(ctx, secondaryID, a.cfg.WindowPoints)
	if err != nil {
		return 0, fmt.Errorf("correlation: window for %s: %w", secondaryID, err)
	}

	n := len(pw)
	if len(sw) < n {
		n = len(sw)
	}
	if n < a.cfg.MinWindowPoints {
		return neutralCorrelation, nil
	}

	// Align on the most recent n points of each window (windows are
	// oldest-first).
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = pw[len(pw)-n+i].Price
		ys[i] = sw[len(sw)-n+i].Price
	}

	r, ok := pearson(xs, ys)
	if !ok {
		return neutralCorrelation, nil
	}
	// Correlation strength: co-movement in either direction is signal for a
	// combined position.
	if r < 0 {
		r = -r
	}
	return r, nil
}

// compatibilityMatrix scores which market-type pairs can form a combined
// position. Symmetric; same-type pairs cover cross-exchange quotes on the
// same market kind.
var compatibilityMatrix = map[domain.MarketType]map[domain.MarketType]float64{
	domain.MarketMoneyline: {
		domain.MarketMoneyline: 0.6,
		domain.MarketSpread:    0.9,
		domain.MarketTotal:     0.75,
		domain.MarketProp:      0.3,
	},
	domain.MarketSpread: {
		domain.MarketSpread: 0.6,
		domain.MarketTotal:  0.7,
		domain.MarketProp:   0.3,
	},
	domain.MarketTotal: {
		domain.MarketTotal: 0.6,
		domain.MarketProp:  0.4,
	},
	domain.MarketProp: {
		domain.MarketProp: 0.2,
	},
}

func compatibility(a, b domain.MarketType) float64 {
	if row, ok := compatibilityMatrix[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := compatibilityMatrix[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}
