// Package indicators reads live wage, employment, and income figures from
// the BLS and Census APIs. Every read is a single best-effort attempt; on
// any failure the caller gets the documented default instead of an error.
package indicators

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/fetcher"
	"github.com/sells-group/geoequity/internal/metrics"
)

// Defaults substituted when a live value is unavailable.
const (
	DefaultUnemploymentRate = 5.0
	DefaultMedianIncome     = 50000.0
)

// Source labels for EconomicIndicators.
const (
	SourceCensusACS = "census_acs5"
	SourceDefault   = "default"
)

// EconomicIndicators describes the local economy around a postal code.
type EconomicIndicators struct {
	UnemploymentRate float64 `json:"unemployment_rate"`
	MedianIncome     float64 `json:"median_income"`
	Source           string  `json:"source"`
}

// DefaultIndicators returns the fallback indicators.
func DefaultIndicators() EconomicIndicators {
	return EconomicIndicators{
		UnemploymentRate: DefaultUnemploymentRate,
		MedianIncome:     DefaultMedianIncome,
		Source:           SourceDefault,
	}
}

// Reader is the read surface the scoring engine depends on.
type Reader interface {
	FetchWageForOccupation(ctx context.Context, occupationCode string) (float64, bool)
	FetchLocalIndicators(ctx context.Context, postalCode string) EconomicIndicators
	FetchMedianIncomeForTract(ctx context.Context, state, county, tract string) float64
	FetchTypicalEmployees(ctx context.Context, industryCode string) (int, bool)
}

// Config configures the upstream endpoints.
type Config struct {
	BLSBaseURL    string
	BLSKey        string
	CensusBaseURL string
	CensusKey     string
	ACSYear       int
	CBPYear       int
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BLSBaseURL == "" {
		c.BLSBaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data"
	}
	if c.CensusBaseURL == "" {
		c.CensusBaseURL = "https://api.census.gov/data"
	}
	if c.ACSYear == 0 {
		c.ACSYear = 2022
	}
	if c.CBPYear == 0 {
		c.CBPYear = 2021
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Gateway implements Reader over a Fetcher.
type Gateway struct {
	cfg     Config
	fetcher fetcher.Fetcher
	cache   Cache
	obs     metrics.Observer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache stores successful live values in c.
func WithCache(c Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithObserver reports failures and fallbacks to o.
func WithObserver(o metrics.Observer) Option {
	return func(g *Gateway) { g.obs = o }
}

// NewGateway creates a Gateway. f should be configured for a single attempt.
func NewGateway(cfg Config, f fetcher.Fetcher, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:     cfg.withDefaults(),
		fetcher: f,
		obs:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	zipRe    = regexp.MustCompile(`^(\d{5})(?:-\d{4})?$`)
)

// FetchWageForOccupation returns the national hourly mean wage for a SOC
// occupation code, or false when unavailable.
func (g *Gateway) FetchWageForOccupation(ctx context.Context, occupationCode string) (float64, bool) {
	if len(occupationCode) != 6 || !digitsRe.MatchString(occupationCode) {
		return 0, false
	}
	key := "wage:" + occupationCode
	if v, ok := g.cachedFloat(ctx, key); ok {
		return v, true
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	wage, err := g.fetchBLSWage(ctx, occupationCode)
	if err != nil {
		g.obs.ExternalCallFailed("bls", err)
		return 0, false
	}
	g.storeFloat(ctx, key, wage)
	return wage, true
}

// FetchLocalIndicators returns unemployment and median income for a ZIP
// code tabulation area. It never fails: on any problem it returns
// DefaultIndicators.
func (g *Gateway) FetchLocalIndicators(ctx context.Context, postalCode string) EconomicIndicators {
	m := zipRe.FindStringSubmatch(postalCode)
	if m == nil {
		g.obs.FallbackUsed("local_indicators", "invalid postal code")
		return DefaultIndicators()
	}
	zip := m[1]

	key := "local:" + zip
	if raw, ok := g.cacheGet(ctx, key); ok {
		var ind EconomicIndicators
		if err := json.Unmarshal([]byte(raw), &ind); err == nil {
			return ind
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	ind, err := g.fetchACSZip(ctx, zip)
	if err != nil {
		g.obs.ExternalCallFailed("census_acs", err)
		g.obs.FallbackUsed("local_indicators", err.Error())
		return DefaultIndicators()
	}
	if raw, err := json.Marshal(ind); err == nil {
		g.cacheSet(ctx, key, string(raw))
	}
	return ind
}

// FetchMedianIncomeForTract returns the median household income of a census
// tract, or DefaultMedianIncome on any failure.
func (g *Gateway) FetchMedianIncomeForTract(ctx context.Context, state, county, tract string) float64 {
	if !validFIPS(state, 2) || !validFIPS(county, 3) || !validFIPS(tract, 6) {
		g.obs.FallbackUsed("tract_income", "invalid tract descriptor")
		return DefaultMedianIncome
	}
	key := "tract:" + state + county + tract
	if v, ok := g.cachedFloat(ctx, key); ok {
		return v
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	income, err := g.fetchACSTract(ctx, state, county, tract)
	if err != nil {
		g.obs.ExternalCallFailed("census_acs", err)
		g.obs.FallbackUsed("tract_income", err.Error())
		return DefaultMedianIncome
	}
	g.storeFloat(ctx, key, income)
	return income
}

// FetchTypicalEmployees returns national employees per establishment for a
// NAICS code from County Business Patterns, or false when unavailable.
func (g *Gateway) FetchTypicalEmployees(ctx context.Context, industryCode string) (int, bool) {
	if industryCode == "" {
		return 0, false
	}
	key := "emp:" + industryCode
	if v, ok := g.cachedFloat(ctx, key); ok {
		return int(v), true
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	n, err := g.fetchCBPEmployees(ctx, industryCode)
	if err != nil {
		g.obs.ExternalCallFailed("census_cbp", err)
		return 0, false
	}
	g.storeFloat(ctx, key, float64(n))
	return n, true
}

func validFIPS(code string, width int) bool {
	return len(code) == width && digitsRe.MatchString(code)
}

func (g *Gateway) cacheGet(ctx context.Context, key string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	return g.cache.Get(ctx, key)
}

func (g *Gateway) cacheSet(ctx context.Context, key, value string) {
	if g.cache == nil {
		return
	}
	g.cache.Set(ctx, key, value)
}

func (g *Gateway) cachedFloat(ctx context.Context, key string) (float64, bool) {
	raw, ok := g.cacheGet(ctx, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		zap.L().Debug("indicators: discarding malformed cache entry", zap.String("key", key))
		return 0, false
	}
	return v, true
}

func (g *Gateway) storeFloat(ctx context.Context, key string, v float64) {
	g.cacheSet(ctx, key, strconv.FormatFloat(v, 'f', -1, 64))
}
