// Package ejv computes the economic justice value (EJV) of a business: five
// dimension scores combined into a composite, a retained/leaked split of a
// nominal transaction, and an optional participation amplification.
package ejv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/metrics"
	"github.com/sells-group/geoequity/internal/refdata"
)

// Scorer is the scoring surface exposed to the HTTP and CLI layers.
type Scorer interface {
	ScoreSimple(ctx context.Context, p BusinessProfile) (*Result, error)
	ScoreWithParticipation(ctx context.Context, req ParticipationRequest) (*AmplifiedResult, error)
}

// Engine runs the scoring pipeline. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	tables  *refdata.Tables
	gateway indicators.Reader
	obs     metrics.Observer
	params  Params
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports fallbacks and completed scores to o.
func WithObserver(o metrics.Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// WithParams overrides the default scoring parameters.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithClock sets the clock used for wage-band inflation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. It fails if the parameters are invalid.
func NewEngine(tables *refdata.Tables, gateway indicators.Reader, opts ...Option) (*Engine, error) {
	e := &Engine{
		tables:  tables,
		gateway: gateway,
		obs:     metrics.Nop{},
		params:  DefaultParams(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tables == nil {
		return nil, eris.New("ejv: reference tables are required")
	}
	if e.gateway == nil {
		return nil, eris.New("ejv: indicator gateway is required")
	}
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Params returns the engine's scoring parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Tables returns the engine's reference tables.
func (e *Engine) Tables() *refdata.Tables {
	return e.tables
}

// externalReads holds the joined results of the concurrent gateway reads.
type externalReads struct {
	wage         float64
	hasWage      bool
	indicators   indicators.EconomicIndicators
	tractIncome  float64
	hasTract     bool
	employees    int
	hasEmployees bool
}

// ScoreSimple scores a business for a nominal transaction.
func (e *Engine) ScoreSimple(ctx context.Context, p BusinessProfile) (*Result, error) {
	start := time.Now()
	res, err := e.score(ctx, p)
	if err != nil {
		return nil, err
	}
	e.obs.ScoreComputed("simple", res.Score, time.Since(start))
	return res, nil
}

// ScoreWithParticipation scores a business and amplifies the value retained
// from the purchase by the caller's participation. A missing purchase
// amount uses the nominal transaction.
func (e *Engine) ScoreWithParticipation(ctx context.Context, req ParticipationRequest) (*AmplifiedResult, error) {
	purchase := e.params.NominalAmount
	if req.PurchaseAmount != nil {
		purchase = *req.PurchaseAmount
	}
	if purchase < 0 {
		return nil, eris.Wrapf(ErrInvalidInput, "purchase amount must be non-negative, got %v", purchase)
	}
	start := time.Now()
	res, err := e.score(ctx, req.Business)
	if err != nil {
		return nil, err
	}

	contributions, ignored := Contributions(req.Records, e.tables.PathwayWeights())
	for _, k := range ignored {
		e.obs.FallbackUsed("participation", fmt.Sprintf("unrecognized pathway %q", k))
	}
	paf := pafFromContributions(contributions)
	retained := round2(purchase * res.Score)
	amplified, delta := Amplify(retained, paf)

	e.obs.ScoreComputed("participation", res.Score, time.Since(start))
	return &AmplifiedResult{
		Result:              res,
		PAF:                 round4(paf),
		Contributions:       contributions,
		IgnoredPathways:     ignored,
		PurchaseAmount:      purchase,
		RetainedForPurchase: retained,
		AmplifiedValue:      amplified,
		AmplificationDelta:  delta,
	}, nil
}

func (e *Engine) score(ctx context.Context, p BusinessProfile) (*Result, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "business id is required")
	}

	industry := ClassifyIndustry(e.tables, p)
	if industry.Source == ClassifiedByDefault {
		e.obs.FallbackUsed("industry", "no industry match")
	}
	size := ResolveSizeProfile(e.tables, p.Name)

	reads, err := e.read(ctx, p, industry, size)
	if err != nil {
		return nil, err
	}

	income := reads.indicators.MedianIncome
	if reads.hasTract {
		income = reads.tractIncome
	}
	if income <= 0 {
		e.obs.FallbackUsed("median_income", "non-positive income")
		income = indicators.DefaultMedianIncome
	}

	payroll := EstimatePayroll(e.tables, PayrollInputs{
		Industry:      industry,
		Size:          size,
		Indicators:    reads.indicators,
		LiveWage:      reads.wage,
		HasLiveWage:   reads.hasWage,
		LiveEmployees: reads.employees,
		HasEmployees:  reads.hasEmployees,
		Now:           e.now(),
	}, e.params)
	if payroll.WageSource == WageFromBand {
		e.obs.FallbackUsed("wage", "no company or live wage")
	}

	dims := ScoreDimensions(DimensionInputs{
		Payroll:      payroll,
		MedianIncome: income,
		Size:         size,
		Baseline:     e.tables.Baseline(industry.Type),
	})
	score := round4(e.params.Weights.Composite(dims))

	return &Result{
		BusinessID:    p.ID,
		Name:          p.Name,
		PostalCode:    p.PostalCode,
		Score:         score,
		Percentage:    round2(score * 100),
		Dimensions:    roundDimensions(dims),
		Value:         SplitValue(score, e.params.NominalAmount),
		Payroll:       payroll,
		SizeProfile:   size,
		Industry:      industry,
		Indicators:    reads.indicators,
		MedianIncome:  income,
		DataSources:   e.dataSources(size, payroll, reads),
		TablesVersion: e.tables.Version,
	}, nil
}

// read fans out the independent gateway reads and joins them. Each read
// degrades to its default on failure, so the group never returns an error
// unless ctx is already done.
func (e *Engine) read(ctx context.Context, p BusinessProfile, industry IndustryClassification, size SizeProfile) (externalReads, error) {
	var r externalReads
	g, gctx := errgroup.WithContext(ctx)

	if size.Company == nil || size.Company.AvgHourlyWage <= 0 {
		g.Go(func() error {
			r.wage, r.hasWage = e.gateway.FetchWageForOccupation(gctx, industry.OccupationCode)
			return nil
		})
	}

	g.Go(func() error {
		if strings.TrimSpace(p.PostalCode) == "" {
			e.obs.FallbackUsed("local_indicators", "no postal code")
			r.indicators = indicators.DefaultIndicators()
			return nil
		}
		r.indicators = e.gateway.FetchLocalIndicators(gctx, p.PostalCode)
		return nil
	})

	if t := p.Tract; t != nil {
		g.Go(func() error {
			r.tractIncome = e.gateway.FetchMedianIncomeForTract(gctx, t.State, t.County, t.Tract)
			r.hasTract = true
			return nil
		})
	}

	g.Go(func() error {
		r.employees, r.hasEmployees = e.gateway.FetchTypicalEmployees(gctx, industry.IndustryCode)
		return nil
	})

	if err := g.Wait(); err != nil {
		return r, err
	}
	if err := ctx.Err(); err != nil {
		return r, eris.Wrap(err, "ejv: scoring cancelled")
	}
	return r, nil
}

func (e *Engine) dataSources(size SizeProfile, payroll PayrollEstimate, reads externalReads) []string {
	sources := []string{"Reference tables " + e.tables.Version}
	if size.Company != nil {
		sources = append(sources, size.Company.DataSources...)
	}
	switch payroll.WageSource {
	case WageFromLive:
		sources = append(sources, "BLS OEWS national wage estimates")
	case WageFromBand:
		sources = append(sources, "Industry wage band")
	}
	if payroll.EmployeeSource == EmployeesFromLive {
		sources = append(sources, "Census County Business Patterns")
	}
	if reads.indicators.Source == indicators.SourceCensusACS {
		sources = append(sources, "Census ACS 5-year (ZCTA)")
	}
	if reads.hasTract && reads.tractIncome != indicators.DefaultMedianIncome {
		sources = append(sources, "Census ACS 5-year (tract)")
	}
	return sources
}

func roundDimensions(d DimensionScores) DimensionScores {
	return DimensionScores{
		FairWage:      round4(d.FairWage),
		PayEquity:     round4(d.PayEquity),
		LocalImpact:   round4(d.LocalImpact),
		Affordability: round4(d.Affordability),
		Environmental: round4(d.Environmental),
	}
}
