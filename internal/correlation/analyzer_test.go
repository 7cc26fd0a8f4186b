package correlation

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/synthbet/arbpipeline/internal/domain"
)

type memHistory struct {
	points map[string][]domain.PricePoint
}

func newMemHistory() *memHistory {
	return &memHistory{points: make(map[string][]domain.PricePoint)}
}

func (h *memHistory) Append(_ context.Context, marketID string, pt domain.PricePoint) error {
	h.points[marketID] = append(h.points[marketID], pt)
	return nil
}

func (h *memHistory) Window(_ context.Context, marketID string, n int) ([]domain.PricePoint, error) {
	pts := h.points[marketID]
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return pts, nil
}

func testAnalyzer(history domain.PriceHistory) *Analyzer {
	return New(history, Config{
		MinCombinedScore: 0.55,
		MaxTimeDelta:     30 * time.Second,
		WindowPoints:     32,
		MinWindowPoints:  5,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func processedTick(marketID string, mt domain.MarketType, price float64, at time.Time) domain.ProcessedTick {
	tick := domain.OddsTick{
		MarketID:   marketID,
		EventID:    "evt-lal-bos",
		Sport:      domain.SportNBA,
		MarketType: mt,
		Side:       domain.SideHome,
		Price:      price,
		Exchange:   "pinnacle",
		ObservedAt: at,
	}
	return domain.ProcessedTick{
		OddsTick:    tick,
		TickHash:    tick.Hash(),
		ProcessedAt: at,
	}
}

func TestAnalyzePairsWithinTimingWindow(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	a := testAnalyzer(newMemHistory())

	tests := []struct {
		name  string
		delta time.Duration
		want  int
	}{
		{"same instant", 0, 1},
		{"inside window", 10 * time.Second, 1},
		{"window edge scores below threshold", 30 * time.Second, 0},
		{"outside window", 31 * time.Second, 0},
		{"far outside window", 5 * time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks := []domain.ProcessedTick{
				processedTick("mkt-ml", domain.MarketMoneyline, -150, base),
				processedTick("mkt-total", domain.MarketTotal, 110, base.Add(tt.delta)),
			}
			cands, err := a.Analyze(context.Background(), ticks)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(cands) != tt.want {
				t.Fatalf("got %d candidates, want %d", len(cands), tt.want)
			}
			if tt.want == 1 {
				c := cands[0]
				if c.Primary.MarketID != "mkt-ml" || c.Secondary.MarketID != "mkt-total" {
					t.Fatalf("unexpected pair %s/%s", c.Primary.MarketID, c.Secondary.MarketID)
				}
				if c.Score < 0.55 {
					t.Fatalf("score %v below threshold", c.Score)
				}
				if c.PriceCorrelation != neutralCorrelation {
					t.Fatalf("correlation = %v with no history, want neutral %v", c.PriceCorrelation, neutralCorrelation)
				}
			}
		})
	}
}

func TestAnalyzeSkipsSameMarket(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	a := testAnalyzer(newMemHistory())

	ticks := []domain.ProcessedTick{
		processedTick("mkt-ml", domain.MarketMoneyline, -150, base),
		processedTick("mkt-ml", domain.MarketMoneyline, -155, base.Add(time.Second)),
	}
	cands, err := a.Analyze(context.Background(), ticks)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d candidates for a single market, want 0", len(cands))
	}
}

func TestAnalyzeNeverPairsAcrossEvents(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	a := testAnalyzer(newMemHistory())

	ml := processedTick("mkt-ml", domain.MarketMoneyline, -150, base)
	total := processedTick("mkt-total", domain.MarketTotal, 110, base)
	total.EventID = "evt-gsw-den"

	cands, err := a.Analyze(context.Background(), []domain.ProcessedTick{ml, total})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d cross-event candidates, want 0", len(cands))
	}
}

func TestAnalyzeTieBreakOnSharedPrimary(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	a := testAnalyzer(newMemHistory())

	// One moneyline primary, two secondaries: a spread (compatibility 0.9)
	// and a total (0.75). The spread pair must win the shared primary.
	ml := processedTick("mkt-ml", domain.MarketMoneyline, -150, base)
	spread := processedTick("mkt-spread", domain.MarketSpread, -110, base)
	total := processedTick("mkt-total", domain.MarketTotal, 110, base)

	cands, err := a.Analyze(context.Background(), []domain.ProcessedTick{ml, spread, total})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, c := range cands {
		if c.Primary.MarketID == "mkt-ml" && c.Secondary.MarketID != "mkt-spread" {
			t.Fatalf("shared primary paired with %s, want mkt-spread", c.Secondary.MarketID)
		}
	}
}

func TestAnalyzeTieBreakPrefersRecentSecondary(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	history := newMemHistory()
	a := testAnalyzer(history)

	// Two totals at the same compatibility observed at the same delta from
	// the primary give equal scores; the later-observed one must win.
	ml := processedTick("mkt-ml", domain.MarketMoneyline, -150, base)
	older := processedTick("mkt-total-a", domain.MarketTotal, 110, base.Add(-5*time.Second))
	newer := processedTick("mkt-total-b", domain.MarketTotal, 112, base.Add(5*time.Second))

	cands, err := a.Analyze(context.Background(), []domain.ProcessedTick{ml, older, newer})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var found bool
	for _, c := range cands {
		if c.Primary.MarketID == "mkt-ml" {
			found = true
			if c.Secondary.MarketID != "mkt-total-b" {
				t.Fatalf("shared primary paired with %s, want the most recent mkt-total-b", c.Secondary.MarketID)
			}
		}
	}
	if !found {
		t.Fatal("no candidate emitted for the shared primary")
	}
}

func TestAnalyzeUsesPriceHistory(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	history := newMemHistory()
	a := testAnalyzer(history)

	// Perfectly co-moving windows push the correlation sub-score to 1.
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		_ = history.Append(context.Background(), "mkt-ml", domain.PricePoint{Price: -150 + float64(i), ObservedAt: at})
		_ = history.Append(context.Background(), "mkt-total", domain.PricePoint{Price: 110 + 2*float64(i), ObservedAt: at})
	}

	ticks := []domain.ProcessedTick{
		processedTick("mkt-ml", domain.MarketMoneyline, -140, base.Add(10*time.Second)),
		processedTick("mkt-total", domain.MarketTotal, 130, base.Add(10*time.Second)),
	}
	cands, err := a.Analyze(context.Background(), ticks)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if got := cands[0].PriceCorrelation; math.Abs(got-1) > 1e-9 {
		t.Fatalf("correlation = %v, want 1 for perfectly co-moving prices", got)
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		xs, ys []float64
		want   float64
		ok     bool
	}{
		{"perfect positive", []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 1, true},
		{"perfect negative", []float64{1, 2, 3, 4}, []float64{8, 6, 4, 2}, -1, true},
		{"zero variance", []float64{5, 5, 5}, []float64{1, 2, 3}, 0, false},
		{"too short", []float64{1}, []float64{2}, 0, false},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pearson(tt.xs, tt.ys)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("r = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompatibilityIsSymmetric(t *testing.T) {
	types := []domain.MarketType{
		domain.MarketMoneyline, domain.MarketSpread, domain.MarketTotal, domain.MarketProp,
	}
	for _, a := range types {
		for _, b := range types {
			if compatibility(a, b) != compatibility(b, a) {
				t.Fatalf("compatibility(%s, %s) not symmetric", a, b)
			}
		}
	}
}
