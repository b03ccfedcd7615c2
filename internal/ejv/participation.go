package ejv

import (
	"sort"
)

// Participation constants.
const (
	hoursForFullIntensity  = 10.0
	monthsForFullDuration  = 12.0
	verifiedMultiplier     = 1.2
	unverifiedMultiplier   = 1.0
	maxAmplification       = 0.25
	MinParticipationFactor = 1.0
	MaxParticipationFactor = 1.0 + maxAmplification
)

// Contributions returns the contribution of each recognized pathway, sorted
// by pathway name, and the names of pathways that were not recognized.
func Contributions(records map[string]ParticipationRecord, weights map[string]float64) ([]PathwayContribution, []string) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []PathwayContribution
	var ignored []string
	for _, k := range keys {
		weight, ok := weights[k]
		if !ok {
			ignored = append(ignored, k)
			continue
		}
		r := records[k]
		c := PathwayContribution{
			Pathway:      k,
			Weight:       weight,
			Intensity:    clamp01(r.Hours / hoursForFullIntensity),
			Verification: unverifiedMultiplier,
			Duration:     clamp01(r.DurationMonths / monthsForFullDuration),
		}
		if r.Verified {
			c.Verification = verifiedMultiplier
		}
		c.Contribution = c.Weight * c.Intensity * c.Verification * c.Duration
		out = append(out, c)
	}
	return out, ignored
}

// CalculatePAF returns the participation amplification factor in
// [1.0, 1.25]. Unrecognized pathways are ignored; no records yields 1.0.
func CalculatePAF(records map[string]ParticipationRecord, weights map[string]float64) float64 {
	contributions, _ := Contributions(records, weights)
	return pafFromContributions(contributions)
}

func pafFromContributions(contributions []PathwayContribution) float64 {
	var sum float64
	for _, c := range contributions {
		sum += c.Contribution
	}
	if sum < 0 {
		sum = 0
	}
	if sum > maxAmplification {
		sum = maxAmplification
	}
	return MinParticipationFactor + sum
}

// Amplify applies the factor to a retained value and returns the amplified
// value and the delta, in cents.
func Amplify(retained, paf float64) (amplified, delta float64) {
	amplified = round2(retained * paf)
	return amplified, round2(amplified - retained)
}
