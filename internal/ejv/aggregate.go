package ejv

// Composite combines dimension scores with the weights. Inputs are clamped,
// so the result is a convex combination in [0,1].
func (w Weights) Composite(d DimensionScores) float64 {
	score := w.FairWage*clamp01(d.FairWage) +
		w.PayEquity*clamp01(d.PayEquity) +
		w.LocalImpact*clamp01(d.LocalImpact) +
		w.Affordability*clamp01(d.Affordability) +
		w.Environmental*clamp01(d.Environmental)
	return clamp01(score)
}

// SplitValue divides a nominal transaction into value retained locally and
// value leaked, in cents.
func SplitValue(score, nominal float64) ValueSplit {
	retained := round2(nominal * clamp01(score))
	return ValueSplit{
		Nominal:  nominal,
		Retained: retained,
		Leaked:   round2(nominal - retained),
	}
}
