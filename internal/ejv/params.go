package ejv

import (
	"math"

	"github.com/rotisserie/eris"
)

// Weights are the linear weights of the composite score.
type Weights struct {
	FairWage      float64 `json:"fair_wage" mapstructure:"fair_wage"`
	PayEquity     float64 `json:"pay_equity" mapstructure:"pay_equity"`
	LocalImpact   float64 `json:"local_impact" mapstructure:"local_impact"`
	Affordability float64 `json:"affordability" mapstructure:"affordability"`
	Environmental float64 `json:"environmental" mapstructure:"environmental"`
}

// DefaultWeights returns 0.25W + 0.15P + 0.30L + 0.15A + 0.15E.
func DefaultWeights() Weights {
	return Weights{
		FairWage:      0.25,
		PayEquity:     0.15,
		LocalImpact:   0.30,
		Affordability: 0.15,
		Environmental: 0.15,
	}
}

// weightTolerance bounds floating-point drift in the weight sum.
const weightTolerance = 1e-9

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.FairWage + w.PayEquity + w.LocalImpact + w.Affordability + w.Environmental
}

// Validate checks that every weight is non-negative and the sum is 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"fair_wage":     w.FairWage,
		"pay_equity":    w.PayEquity,
		"local_impact":  w.LocalImpact,
		"affordability": w.Affordability,
		"environmental": w.Environmental,
	} {
		if v < 0 || math.IsNaN(v) {
			return eris.Errorf("ejv: weight %s must be non-negative, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return eris.Errorf("ejv: weights must sum to 1.0, got %.10f", sum)
	}
	return nil
}

// Params are the tunable constants of the scoring pipeline.
type Params struct {
	Weights Weights
	// NominalAmount is the reference transaction split into retained and leaked value.
	NominalAmount float64
	// BaseYear anchors wage-band inflation.
	BaseYear int
	// WageInflation is the annual inflation applied to wage-band midpoints.
	WageInflation float64
}

// DefaultParams returns the standard scoring parameters.
func DefaultParams() Params {
	return Params{
		Weights:       DefaultWeights(),
		NominalAmount: 100,
		BaseYear:      2024,
		WageInflation: 0.03,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if p.NominalAmount <= 0 {
		return eris.Errorf("ejv: nominal amount must be positive, got %v", p.NominalAmount)
	}
	if p.WageInflation < 0 {
		return eris.Errorf("ejv: wage inflation must be non-negative, got %v", p.WageInflation)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// clamp01 bounds v to [0,1]; NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
