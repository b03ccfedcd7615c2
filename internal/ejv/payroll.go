package ejv

import (
	"math"
	"time"

	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/refdata"
)

// Wage and headcount source labels.
const (
	WageFromCompany = "company"
	WageFromLive    = "bls_oews"
	WageFromBand    = "wage_band"

	EmployeesFromLive    = "census_cbp"
	EmployeesFromTable   = "typical_employees"
	EmployeesFromAverage = "wage_band_average"
)

// Payroll constants.
const (
	hoursPerShift       = 8
	minActiveEmployees  = 3
	baseLocalHire       = 0.65
	maxUnemploymentLift = 0.20
	maxLocalHire        = 0.95
	communitySpendShare = 0.05
)

// PayrollInputs are the joined results of classification, size resolution,
// and the external reads.
type PayrollInputs struct {
	Industry      IndustryClassification
	Size          SizeProfile
	Indicators    indicators.EconomicIndicators
	LiveWage      float64
	HasLiveWage   bool
	LiveEmployees int
	HasEmployees  bool
	Now           time.Time
}

// EstimatePayroll derives wage, headcount, local hiring, and community
// spend. It is deterministic for identical inputs.
func EstimatePayroll(t *refdata.Tables, in PayrollInputs, p Params) PayrollEstimate {
	var est PayrollEstimate

	switch {
	case in.Size.Company != nil && in.Size.Company.AvgHourlyWage > 0:
		est.AvgHourlyWage = in.Size.Company.AvgHourlyWage
		est.WageSource = WageFromCompany
	case in.HasLiveWage && in.LiveWage > 0:
		est.AvgHourlyWage = in.LiveWage * in.Size.Multipliers.Wage
		est.WageSource = WageFromLive
	default:
		band := t.WageBand(in.Industry.Type)
		est.AvgHourlyWage = band.Midpoint() * inflationFactor(in.Now, p) * in.Size.Multipliers.Wage
		est.WageSource = WageFromBand
	}
	est.AvgHourlyWage = round2(est.AvgHourlyWage)

	switch n, ok := t.TypicalEmployeeCount(in.Industry.IndustryCode); {
	case in.HasEmployees && in.LiveEmployees > 0:
		est.ActiveEmployees = in.LiveEmployees
		est.EmployeeSource = EmployeesFromLive
	case ok:
		est.ActiveEmployees = n
		est.EmployeeSource = EmployeesFromTable
	default:
		est.ActiveEmployees = t.WageBand(in.Industry.Type).AvgEmployees
		est.EmployeeSource = EmployeesFromAverage
	}
	if est.ActiveEmployees < minActiveEmployees {
		est.ActiveEmployees = minActiveEmployees
	}

	est.LocalHireRate = LocalHireRate(in.Indicators.UnemploymentRate, in.Size.Multipliers.LocalHire)
	est.DailyPayroll = round2(float64(est.ActiveEmployees) * est.AvgHourlyWage * hoursPerShift)
	est.DailyCommunitySpend = round2(est.DailyPayroll * communitySpendShare * in.Size.Multipliers.CommunitySpend)
	return est
}

// LocalHireRate returns the expected fraction of local hires. Higher
// unemployment lifts local hiring by up to 20 points.
func LocalHireRate(unemploymentRate, localHireMultiplier float64) float64 {
	if unemploymentRate < 0 || math.IsNaN(unemploymentRate) {
		unemploymentRate = 0
	}
	base := baseLocalHire + math.Min(maxUnemploymentLift, unemploymentRate/10*maxUnemploymentLift)
	return round2(math.Min(maxLocalHire, base*localHireMultiplier))
}

// inflationFactor compounds wage inflation from the base year to now.
// Years before the base year are not deflated.
func inflationFactor(now time.Time, p Params) float64 {
	years := now.Year() - p.BaseYear
	if years <= 0 {
		return 1
	}
	return math.Pow(1+p.WageInflation, float64(years))
}
