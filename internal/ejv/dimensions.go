package ejv

import (
	"math"

	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/refdata"
)

// Dimension constants.
const (
	annualWorkHours        = 2080
	essentialsBudgetShare  = 0.35
	monthlyGroceryBaseline = 550.0
	nationalMedianIncome   = 75000.0
	groceryBudgetShare     = 0.15
	localEquityBonus       = 1.15
	maxProcurementPct      = 95.0
	localRenewableAdjust   = 0.7
	localRecyclingAdjust   = 1.3
)

// DimensionInputs are everything the five scorers read.
type DimensionInputs struct {
	Payroll      PayrollEstimate
	MedianIncome float64
	Size         SizeProfile
	Baseline     refdata.Baseline
}

// ScoreDimensions computes all five dimension scores, each in [0,1].
func ScoreDimensions(in DimensionInputs) DimensionScores {
	income := IncomeFloor(in.MedianIncome)
	return DimensionScores{
		FairWage:      FairWage(in.Payroll.AvgHourlyWage, income),
		PayEquity:     PayEquity(in.Size, in.Baseline),
		LocalImpact:   LocalImpact(ProcurementPct(in.Size, in.Baseline), in.Payroll.LocalHireRate),
		Affordability: Affordability(income, AffordabilityMultiplier(in.Size, in.Baseline)),
		Environmental: Environmental(in.Size, in.Baseline),
	}
}

// IncomeFloor replaces a non-positive or non-finite income with the default.
func IncomeFloor(income float64) float64 {
	if income <= 0 || math.IsNaN(income) || math.IsInf(income, 0) {
		return indicators.DefaultMedianIncome
	}
	return income
}

// LivingWage is the hourly wage equal to the essentials share of local
// median income.
func LivingWage(medianIncome float64) float64 {
	return IncomeFloor(medianIncome) / annualWorkHours * essentialsBudgetShare
}

// FairWage scores the average wage against the local living wage.
func FairWage(avgWage, medianIncome float64) float64 {
	return clamp01(avgWage / LivingWage(medianIncome))
}

// PayEquity uses the company equity score when known, else the industry
// baseline adjusted by size. Local independents get a bonus.
func PayEquity(size SizeProfile, base refdata.Baseline) float64 {
	if size.Company != nil {
		return clamp01(size.Company.EquityScore / 100)
	}
	p := base.EquityPct / 100 * size.Multipliers.Equity
	if size.IsLocalIndependent() {
		p *= localEquityBonus
	}
	return clamp01(p)
}

// ProcurementPct is the share of purchasing sourced locally, in percent.
func ProcurementPct(size SizeProfile, base refdata.Baseline) float64 {
	if size.Company != nil {
		return size.Company.LocalProcurementPct
	}
	return math.Min(maxProcurementPct, base.ProcurementPct*size.Multipliers.Supplier)
}

// LocalImpact is local procurement times local hiring. A business must do
// both to score well.
func LocalImpact(procurementPct, localHireRate float64) float64 {
	return clamp01(procurementPct / 100 * localHireRate)
}

// AffordabilityMultiplier is the company's price multiplier when known,
// else the store-type multiplier for the industry.
func AffordabilityMultiplier(size SizeProfile, base refdata.Baseline) float64 {
	if size.Company != nil && size.Company.AffordabilityMultiplier > 0 {
		return size.Company.AffordabilityMultiplier
	}
	if base.StoreTypeMultiplier > 0 {
		return base.StoreTypeMultiplier
	}
	return 1
}

// Affordability scores the grocery cost burden against a 15% budget share.
func Affordability(medianIncome, storeMultiplier float64) float64 {
	income := IncomeFloor(medianIncome)
	basket := monthlyGroceryBaseline * (income / nationalMedianIncome) * storeMultiplier
	burden := basket / (income / 12)
	return clamp01(1 - burden/groceryBudgetShare)
}

// Environmental averages renewable energy and recycling percentages.
func Environmental(size SizeProfile, base refdata.Baseline) float64 {
	var renewable, recycling float64
	if size.Company != nil {
		renewable = size.Company.RenewableEnergyPct
		recycling = size.Company.RecyclingPct
	} else {
		renewable = base.RenewablePct * size.Multipliers.Environmental
		recycling = base.RecyclingPct * size.Multipliers.Environmental
		if size.IsLocalIndependent() {
			renewable *= localRenewableAdjust
			recycling *= localRecyclingAdjust
		}
	}
	return clamp01((renewable/100 + recycling/100) / 2)
}
