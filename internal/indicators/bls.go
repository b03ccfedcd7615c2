package indicators

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoequity/internal/fetcher"
)

// blsSeriesResponse is the BLS API v2 response format.
type blsSeriesResponse struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []struct {
			SeriesID string `json:"seriesID"`
			Data     []struct {
				Year   string `json:"year"`
				Period string `json:"period"`
				Value  string `json:"value"`
			} `json:"data"`
		} `json:"series"`
	} `json:"Results"`
}

// oewsHourlyMeanSeries builds the OEWS national cross-industry series id for
// an occupation's hourly mean wage (datatype 03).
func oewsHourlyMeanSeries(occupationCode string) string {
	return "OEUN" + "0000000" + "000000" + occupationCode + "03"
}

func (g *Gateway) blsURL(seriesID string) string {
	u := fmt.Sprintf("%s/%s", g.cfg.BLSBaseURL, seriesID)
	if g.cfg.BLSKey != "" {
		u += "?registrationkey=" + url.QueryEscape(g.cfg.BLSKey)
	}
	return u
}

func (g *Gateway) fetchBLSWage(ctx context.Context, occupationCode string) (float64, error) {
	seriesID := oewsHourlyMeanSeries(occupationCode)
	body, err := g.fetcher.Download(ctx, g.blsURL(seriesID))
	if err != nil {
		return 0, eris.Wrapf(err, "indicators: bls series %s", seriesID)
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[blsSeriesResponse](body)
	if err != nil {
		return 0, eris.Wrapf(err, "indicators: bls series %s", seriesID)
	}
	if resp.Status != "REQUEST_SUCCEEDED" {
		return 0, eris.Errorf("indicators: bls series %s: status %s", seriesID, resp.Status)
	}

	// Data points are newest first; "-" marks a suppressed estimate.
	for _, series := range resp.Results.Series {
		for _, dp := range series.Data {
			v, err := strconv.ParseFloat(dp.Value, 64)
			if err != nil || v <= 0 {
				continue
			}
			return v, nil
		}
	}
	return 0, eris.Errorf("indicators: bls series %s: no usable value", seriesID)
}
