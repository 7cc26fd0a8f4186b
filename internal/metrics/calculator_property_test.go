package metrics

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genAmericanOdds produces valid (non-zero) American odds in a realistic
// range: magnitudes between 100 and 10000 on either side.
func genAmericanOdds() gopter.Gen {
	return gen.OneGenOf(
		gen.Float64Range(100, 10000),
		gen.Float64Range(-10000, -100),
	)
}

func TestImpliedProbability_InUnitInterval_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("implied probability is in (0, 1) for all non-zero odds", prop.ForAll(
		func(price float64) bool {
			p, err := ImpliedProbability(price)
			if err != nil {
				return false
			}
			return p > 0 && p < 1
		},
		genAmericanOdds(),
	))

	properties.TestingRun(t)
}

func TestExpectedValue_DoubleSwapIdempotent_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ev(swap(swap(h,a))) == ev(h,a)", prop.ForAll(
		func(home, away float64) bool {
			ev1, err := ExpectedValue(home, away)
			if err != nil {
				return false
			}
			// swap twice
			h, a := away, home
			h, a = a, h
			ev2, err := ExpectedValue(h, a)
			if err != nil {
				return false
			}
			return math.Abs(ev1-ev2) < 1e-12
		},
		genAmericanOdds(),
		genAmericanOdds(),
	))

	properties.TestingRun(t)
}

func TestKellyFraction_ScalesWithEdge_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("kelly is linear in edge", prop.ForAll(
		func(home, away, edge float64) bool {
			k1, err := KellyFraction(home, away, edge)
			if err != nil {
				return false
			}
			k2, err := KellyFraction(home, away, 2*edge)
			if err != nil {
				return false
			}
			return math.Abs(k2-2*k1) < 1e-9
		},
		genAmericanOdds(),
		genAmericanOdds(),
		gen.Float64Range(0, 0.5),
	))

	properties.TestingRun(t)
}
