package ejv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geoequity/internal/refdata"
)

func TestFairWage(t *testing.T) {
	// Living wage at 50000 is ~8.41/h.
	assert.Equal(t, 1.0, FairWage(16.50, 50000))
	assert.InDelta(t, 0.5, FairWage(LivingWage(80000)/2, 80000), 1e-9)
	assert.Equal(t, 0.0, FairWage(0, 50000))
	assert.Equal(t, FairWage(10, 50000), FairWage(10, -1), "non-positive income uses the default")
}

func TestAffordability(t *testing.T) {
	assert.InDelta(t, 0.4133, Affordability(50000, 1.0), 1e-4)
	assert.InDelta(t, 0.4133, Affordability(150000, 1.0), 1e-4, "basket scales with income")
	assert.InDelta(t, 0.4603, Affordability(50000, 0.92), 1e-4)
	assert.Equal(t, 0.0, Affordability(50000, 2.0))
	assert.Equal(t, Affordability(50000, 1), Affordability(0, 1))
}

func TestPayEquity(t *testing.T) {
	tables := refdata.Default()
	base := tables.Baseline("supermarket")

	local := ResolveSizeProfile(tables, "Rosa's Family Grocery")
	assert.InDelta(t, 0.6325, PayEquity(local, base), 1e-9)

	regional := ResolveSizeProfile(tables, "Wegmans")
	assert.InDelta(t, 0.5775, PayEquity(regional, base), 1e-9)

	costco := ResolveSizeProfile(tables, "Costco")
	assert.InDelta(t, 0.81, PayEquity(costco, base), 1e-9)
}

func TestLocalImpact(t *testing.T) {
	tables := refdata.Default()
	base := tables.Baseline("supermarket")

	local := ResolveSizeProfile(tables, "Rosa's Family Grocery")
	assert.InDelta(t, 90.0, ProcurementPct(local, base), 1e-9)

	convenience := tables.Baseline("convenience")
	chain := ResolveSizeProfile(tables, "Dollar General")
	assert.InDelta(t, 15.0, ProcurementPct(chain, convenience), 1e-9)

	assert.InDelta(t, 0.224, LocalImpact(35, 0.64), 1e-9)
	assert.Equal(t, 1.0, LocalImpact(200, 1))
}

func TestEnvironmental(t *testing.T) {
	tables := refdata.Default()
	base := tables.Baseline("supermarket")

	local := ResolveSizeProfile(tables, "Rosa's Family Grocery")
	assert.InDelta(t, 0.43, Environmental(local, base), 1e-9)

	walmart := ResolveSizeProfile(tables, "Walmart")
	assert.InDelta(t, 0.365, Environmental(walmart, base), 1e-9)
}

func TestScoreDimensions_AlwaysInRange(t *testing.T) {
	tables := refdata.Default()
	names := []string{"Walmart", "Costco", "Rosa's Family Grocery", "Wegmans", "7-Eleven #44", ""}
	incomes := []float64{-5, 0, 1, 20000, 50000, 250000, math.NaN(), math.Inf(1)}
	wages := []float64{0, 7.25, 16.5, 80}

	for _, name := range names {
		size := ResolveSizeProfile(tables, name)
		for _, income := range incomes {
			for _, wage := range wages {
				d := ScoreDimensions(DimensionInputs{
					Payroll:      PayrollEstimate{AvgHourlyWage: wage, LocalHireRate: 0.95},
					MedianIncome: income,
					Size:         size,
					Baseline:     tables.Baseline("supermarket"),
				})
				for _, v := range []float64{d.FairWage, d.PayEquity, d.LocalImpact, d.Affordability, d.Environmental} {
					assert.GreaterOrEqual(t, v, 0.0)
					assert.LessOrEqual(t, v, 1.0)
				}
			}
		}
	}
}

func TestComposite(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.NoError(t, w.Validate())

	assert.Equal(t, 0.0, w.Composite(DimensionScores{}))
	assert.InDelta(t, 1.0, w.Composite(DimensionScores{1, 1, 1, 1, 1}), 1e-12)
	assert.InDelta(t, 0.534, w.Composite(DimensionScores{
		FairWage: 1, PayEquity: 0.62, LocalImpact: 0.224, Affordability: 0.46027, Environmental: 0.365,
	}), 1e-3)
	assert.InDelta(t, 1.0, w.Composite(DimensionScores{2, 2, 2, 2, 2}), 1e-12, "inputs are clamped")
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	w.LocalImpact = -0.1
	w.FairWage = 0.65
	assert.ErrorContains(t, w.Validate(), "non-negative")

	w = DefaultWeights()
	w.Environmental = 0.2
	assert.ErrorContains(t, w.Validate(), "sum to 1.0")
}

func TestSplitValue(t *testing.T) {
	v := SplitValue(0.534, 100)
	assert.Equal(t, ValueSplit{Nominal: 100, Retained: 53.40, Leaked: 46.60}, v)

	v = SplitValue(0.7036, 250)
	assert.Equal(t, 175.90, v.Retained)
	assert.InDelta(t, 250, v.Retained+v.Leaked, 1e-9)
}
