package indicators

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoequity/internal/fetcher"
)

// ACS 5-year variables.
const (
	acsMedianIncome = "B19013_001E"
	acsUnemployed   = "B23025_005E"
	acsLaborForce   = "B23025_003E"
)

func (g *Gateway) censusKeyParam() string {
	if g.cfg.CensusKey == "" {
		return ""
	}
	return "&key=" + url.QueryEscape(g.cfg.CensusKey)
}

func (g *Gateway) fetchTable(ctx context.Context, rawURL string) (map[string]string, error) {
	body, err := g.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.DecodeTable(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("no rows")
	}
	return rows[0], nil
}

// positive parses a Census cell. The ACS encodes missing estimates as large
// negative sentinels (e.g. -666666666), which are rejected here.
func positive(row map[string]string, col string) (float64, error) {
	raw, ok := row[col]
	if !ok || raw == "" {
		return 0, eris.Errorf("missing %s", col)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s", col)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("unusable %s value %s", col, raw)
	}
	return v, nil
}

func (g *Gateway) fetchACSZip(ctx context.Context, zip string) (EconomicIndicators, error) {
	rawURL := fmt.Sprintf("%s/%d/acs/acs5?get=%s,%s,%s&for=zip%%20code%%20tabulation%%20area:%s%s",
		g.cfg.CensusBaseURL, g.cfg.ACSYear, acsMedianIncome, acsUnemployed, acsLaborForce, zip, g.censusKeyParam())

	row, err := g.fetchTable(ctx, rawURL)
	if err != nil {
		return EconomicIndicators{}, eris.Wrapf(err, "indicators: acs zcta %s", zip)
	}

	income, err := positive(row, acsMedianIncome)
	if err != nil || income == 0 {
		return EconomicIndicators{}, eris.Errorf("indicators: acs zcta %s: no usable median income", zip)
	}
	unemployed, err := positive(row, acsUnemployed)
	if err != nil {
		return EconomicIndicators{}, eris.Wrapf(err, "indicators: acs zcta %s", zip)
	}
	laborForce, err := positive(row, acsLaborForce)
	if err != nil || laborForce == 0 {
		return EconomicIndicators{}, eris.Errorf("indicators: acs zcta %s: no usable labor force", zip)
	}

	return EconomicIndicators{
		UnemploymentRate: math.Round(unemployed/laborForce*1000) / 10,
		MedianIncome:     income,
		Source:           SourceCensusACS,
	}, nil
}

func (g *Gateway) fetchACSTract(ctx context.Context, state, county, tract string) (float64, error) {
	rawURL := fmt.Sprintf("%s/%d/acs/acs5?get=%s&for=tract:%s&in=state:%s%%20county:%s%s",
		g.cfg.CensusBaseURL, g.cfg.ACSYear, acsMedianIncome, tract, state, county, g.censusKeyParam())

	row, err := g.fetchTable(ctx, rawURL)
	if err != nil {
		return 0, eris.Wrapf(err, "indicators: acs tract %s%s%s", state, county, tract)
	}
	income, err := positive(row, acsMedianIncome)
	if err != nil || income == 0 {
		return 0, eris.Errorf("indicators: acs tract %s%s%s: no usable median income", state, county, tract)
	}
	return income, nil
}

func (g *Gateway) fetchCBPEmployees(ctx context.Context, industryCode string) (int, error) {
	rawURL := fmt.Sprintf("%s/%d/cbp?get=EMP,ESTAB&for=us:*&NAICS2017=%s%s",
		g.cfg.CensusBaseURL, g.cfg.CBPYear, url.QueryEscape(industryCode), g.censusKeyParam())

	row, err := g.fetchTable(ctx, rawURL)
	if err != nil {
		return 0, eris.Wrapf(err, "indicators: cbp naics %s", industryCode)
	}
	emp, err := positive(row, "EMP")
	if err != nil {
		return 0, eris.Wrapf(err, "indicators: cbp naics %s", industryCode)
	}
	estab, err := positive(row, "ESTAB")
	if err != nil || estab == 0 {
		return 0, eris.Errorf("indicators: cbp naics %s: no establishments", industryCode)
	}
	return int(math.Round(emp / estab)), nil
}
