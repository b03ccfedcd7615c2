package ejv

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/refdata"
)

func newTestEngine(t *testing.T, r indicators.Reader, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	e, err := NewEngine(refdata.Default(), r, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, newFakeReader())
	require.Error(t, err)

	_, err = NewEngine(refdata.Default(), nil)
	require.Error(t, err)

	bad := DefaultParams()
	bad.Weights.FairWage = 0.5
	_, err = NewEngine(refdata.Default(), newFakeReader(), WithParams(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestScoreSimple_Walmart(t *testing.T) {
	r := newFakeReader()
	e := newTestEngine(t, r)

	res, err := e.ScoreSimple(context.Background(), BusinessProfile{
		ID:         "node/1",
		Name:       "Walmart Supercenter",
		PostalCode: "94110",
	})
	require.NoError(t, err)

	assert.Equal(t, "supermarket", res.Industry.Type)
	assert.Equal(t, ClassifiedByCompany, res.Industry.Source)
	assert.True(t, res.SizeProfile.CompanySpecific)
	assert.Equal(t, refdata.NationalChain, res.SizeProfile.Type)
	assert.Equal(t, 16.50, res.Payroll.AvgHourlyWage)
	assert.Equal(t, WageFromCompany, res.Payroll.WageSource)
	assert.InDelta(t, 0.64, res.Payroll.LocalHireRate, 0.005)

	assert.Equal(t, 1.0, res.Dimensions.FairWage)
	assert.InDelta(t, 0.62, res.Dimensions.PayEquity, 1e-9)
	assert.InDelta(t, 0.224, res.Dimensions.LocalImpact, 0.002)
	assert.InDelta(t, 0.4603, res.Dimensions.Affordability, 1e-4)
	assert.InDelta(t, 0.365, res.Dimensions.Environmental, 1e-9)
	assert.InDelta(t, 0.534, res.Score, 0.001)

	assert.Equal(t, 100.0, res.Value.Nominal)
	assert.InDelta(t, 100.0, res.Value.Retained+res.Value.Leaked, 1e-9)
	assert.Contains(t, res.DataSources, "Walmart ESG Report")

	assert.Zero(t, r.wageCalls.Load(), "company wage skips the BLS read")
	assert.EqualValues(t, 1, r.localCalls.Load())
	assert.Zero(t, r.tractCalls.Load())
}

func TestScoreSimple_LocalIndependentBeatsChain(t *testing.T) {
	e := newTestEngine(t, newFakeReader())
	ctx := context.Background()

	local, err := e.ScoreSimple(ctx, BusinessProfile{ID: "node/2", Name: "Rosa's Family Grocery", PostalCode: "94110"})
	require.NoError(t, err)
	chain, err := e.ScoreSimple(ctx, BusinessProfile{ID: "node/1", Name: "Walmart", PostalCode: "94110"})
	require.NoError(t, err)

	assert.Equal(t, refdata.LocalIndependent, local.SizeProfile.Type)
	assert.Equal(t, "default", local.SizeProfile.MatchedBy)
	assert.Equal(t, "supermarket", local.Industry.Type)
	assert.Equal(t, ClassifiedByName, local.Industry.Source)
	assert.Equal(t, WageFromBand, local.Payroll.WageSource)
	assert.InDelta(t, 0.7036, local.Score, 0.005)
	assert.Greater(t, local.Score, chain.Score)
	assert.Greater(t, local.Value.Retained, chain.Value.Retained)
}

func TestScoreSimple_CostcoWageMultiplier(t *testing.T) {
	e := newTestEngine(t, newFakeReader())

	res, err := e.ScoreSimple(context.Background(), BusinessProfile{ID: "node/3", Name: "Costco Wholesale"})
	require.NoError(t, err)

	assert.Equal(t, "warehouse", res.Industry.Type)
	assert.Equal(t, 1.30, res.SizeProfile.Multipliers.Wage)
	assert.Equal(t, 19.50, res.Payroll.AvgHourlyWage)
	assert.Equal(t, "company_specific", res.SizeProfile.MatchedBy)
}

func TestScoreSimple_LiveWageAndEmployees(t *testing.T) {
	r := newFakeReader()
	r.wage, r.hasWage = 18.00, true
	r.employees, r.hasEmploy = 40, true
	r.local = indicators.EconomicIndicators{UnemploymentRate: 10, MedianIncome: 90000, Source: indicators.SourceCensusACS}
	e := newTestEngine(t, r)

	res, err := e.ScoreSimple(context.Background(), BusinessProfile{ID: "node/4", Name: "Corner Pharmacy", PostalCode: "10001"})
	require.NoError(t, err)

	// Local independent wage multiplier is 0.95.
	assert.Equal(t, 17.10, res.Payroll.AvgHourlyWage)
	assert.Equal(t, WageFromLive, res.Payroll.WageSource)
	assert.Equal(t, 40, res.Payroll.ActiveEmployees)
	assert.Equal(t, EmployeesFromLive, res.Payroll.EmployeeSource)
	assert.Equal(t, 0.95, res.Payroll.LocalHireRate)
	assert.Equal(t, 90000.0, res.MedianIncome)
	assert.Contains(t, res.DataSources, "BLS OEWS national wage estimates")
	assert.Contains(t, res.DataSources, "Census ACS 5-year (ZCTA)")
	assert.Contains(t, res.DataSources, "Census County Business Patterns")
}

func TestScoreSimple_TractIncomeOverridesPostal(t *testing.T) {
	r := newFakeReader()
	r.tractIncome = 120000
	e := newTestEngine(t, r)

	res, err := e.ScoreSimple(context.Background(), BusinessProfile{
		ID:    "node/5",
		Name:  "Quick Stop",
		Tract: &CensusTract{State: "06", County: "075", Tract: "020100"},
	})
	require.NoError(t, err)
	assert.Equal(t, 120000.0, res.MedianIncome)
	assert.EqualValues(t, 1, r.tractCalls.Load())
	assert.Contains(t, res.DataSources, "Census ACS 5-year (tract)")
}

func TestScoreSimple_Fallbacks(t *testing.T) {
	obs := &recordingObserver{}
	r := newFakeReader()
	e := newTestEngine(t, r, WithObserver(obs))

	res, err := e.ScoreSimple(context.Background(), BusinessProfile{ID: "way/77"})
	require.NoError(t, err)

	assert.Equal(t, refdata.DefaultType, res.Industry.Type)
	assert.Equal(t, indicators.DefaultIndicators(), res.Indicators)
	assert.Equal(t, indicators.DefaultMedianIncome, res.MedianIncome)
	assert.Zero(t, r.localCalls.Load(), "empty postal code skips the ACS read")

	stages := obs.stages()
	assert.Contains(t, stages, "industry")
	assert.Contains(t, stages, "local_indicators")
	assert.Contains(t, stages, "wage")
	assert.Equal(t, []string{"simple"}, obs.scores)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestScoreSimple_InvalidInput(t *testing.T) {
	e := newTestEngine(t, newFakeReader())
	_, err := e.ScoreSimple(context.Background(), BusinessProfile{ID: "   ", Name: "Walmart"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScoreSimple_Deterministic(t *testing.T) {
	e := newTestEngine(t, newFakeReader())
	p := BusinessProfile{ID: "node/8", Name: "Blue Bottle Coffee", PostalCode: "94103"}

	first, err := e.ScoreSimple(context.Background(), p)
	require.NoError(t, err)
	for range 5 {
		again, err := e.ScoreSimple(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScoreSimple_ReadsRunConcurrently(t *testing.T) {
	r := newFakeReader()
	const reads = 4
	var arrived atomic.Int32
	release := make(chan struct{})
	var once sync.Once
	r.barrier = func() {
		if arrived.Add(1) == reads {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}
	e := newTestEngine(t, r)

	start := time.Now()
	_, err := e.ScoreSimple(context.Background(), BusinessProfile{
		ID:         "node/9",
		Name:       "Main Street Market",
		PostalCode: "60601",
		Tract:      &CensusTract{State: "17", County: "031", Tract: "081500"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, reads, arrived.Load())
	assert.Less(t, time.Since(start), time.Second, "reads must not run sequentially")
}

func TestScoreSimple_CancelledContext(t *testing.T) {
	e := newTestEngine(t, newFakeReader())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ScoreSimple(ctx, BusinessProfile{ID: "node/10"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreWithParticipation(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, newFakeReader(), WithObserver(obs))

	res, err := e.ScoreWithParticipation(context.Background(), ParticipationRequest{
		Business: BusinessProfile{ID: "node/11", Name: "Rosa's Family Grocery"},
		Records: map[string]ParticipationRecord{
			"mentoring":    {Hours: 2, Verified: true, DurationMonths: 12},
			"juggling":     {Hours: 40, Verified: true, DurationMonths: 12},
			"volunteering": {Hours: 5, DurationMonths: 6},
		},
		PurchaseAmount: amount(50),
	})
	require.NoError(t, err)

	// mentoring 0.08*0.2*1.2*1 + volunteering 0.06*0.5*1*0.5
	assert.InDelta(t, 1.0342, res.PAF, 1e-9)
	assert.Equal(t, []string{"juggling"}, res.IgnoredPathways)
	require.Len(t, res.Contributions, 2)
	assert.Equal(t, "mentoring", res.Contributions[0].Pathway)
	assert.Equal(t, 50.0, res.PurchaseAmount)
	assert.InDelta(t, 50*res.Score, res.RetainedForPurchase, 0.01)
	assert.InDelta(t, res.RetainedForPurchase*res.PAF, res.AmplifiedValue, 0.01)
	assert.InDelta(t, res.AmplifiedValue-res.RetainedForPurchase, res.AmplificationDelta, 1e-9)
	assert.Contains(t, obs.stages(), "participation")
	assert.Equal(t, []string{"participation"}, obs.scores)
}

func amount(v float64) *float64 { return &v }

func TestScoreWithParticipation_Defaults(t *testing.T) {
	e := newTestEngine(t, newFakeReader())

	res, err := e.ScoreWithParticipation(context.Background(), ParticipationRequest{
		Business: BusinessProfile{ID: "node/12", Name: "Walmart"},
	})
	require.NoError(t, err)
	assert.Equal(t, MinParticipationFactor, res.PAF)
	assert.Equal(t, 100.0, res.PurchaseAmount)
	assert.Equal(t, res.Value.Retained, res.AmplifiedValue)
	assert.Zero(t, res.AmplificationDelta)

	_, err = e.ScoreWithParticipation(context.Background(), ParticipationRequest{
		Business:       BusinessProfile{ID: "node/12"},
		PurchaseAmount: amount(-1),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScoreWithParticipation_ExplicitZeroPurchase(t *testing.T) {
	e := newTestEngine(t, newFakeReader())

	res, err := e.ScoreWithParticipation(context.Background(), ParticipationRequest{
		Business:       BusinessProfile{ID: "node/12", Name: "Rosa's Family Grocery"},
		Records:        map[string]ParticipationRecord{"mentoring": {Hours: 2, Verified: true, DurationMonths: 12}},
		PurchaseAmount: amount(0),
	})
	require.NoError(t, err)
	assert.Zero(t, res.PurchaseAmount)
	assert.Zero(t, res.RetainedForPurchase)
	assert.Zero(t, res.AmplifiedValue)
	assert.Zero(t, res.AmplificationDelta)
	assert.Greater(t, res.PAF, MinParticipationFactor)
}
