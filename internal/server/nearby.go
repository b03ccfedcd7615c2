package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/overpass"
	"github.com/sells-group/geoequity/internal/store"
)

// NearbyStore is one scored store around the search point.
type NearbyStore struct {
	OSMID      string      `json:"osm_id"`
	Name       string      `json:"name"`
	Category   string      `json:"category,omitempty"`
	PostalCode string      `json:"postal_code,omitempty"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	DistanceM  float64     `json:"distance_m"`
	Result     *ejv.Result `json:"result"`
}

// NearbyResponse lists scored stores, best first.
type NearbyResponse struct {
	Center  [2]float64    `json:"center"`
	Radius  float64       `json:"radius_m"`
	BBox    [4]float64    `json:"bbox"`
	Count   int           `json:"count"`
	Skipped int           `json:"skipped"`
	Stores  []NearbyStore `json:"stores"`
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overpass == nil {
		writeError(w, http.StatusServiceUnavailable, "overpass proxy is disabled")
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required numbers")
		return
	}
	var radius float64
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "radius must be a number")
			return
		}
		radius = v
	}
	area, err := overpass.NewArea(lat, lon, radius)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := s.deps.Overpass.Query(r.Context(), area.ShopQuery())
	if err != nil {
		zap.L().Warn("server: nearby query failed", zap.Error(err))
		if errors.Is(err, overpass.ErrTooLarge) {
			writeOverpassError(w, http.StatusBadGateway, "overpass response too large")
			return
		}
		writeOverpassError(w, http.StatusServiceUnavailable, "All Overpass servers failed")
		return
	}
	parsed, err := overpass.ParseResponse(raw)
	if err != nil {
		writeError(w, http.StatusBadGateway, "invalid overpass response")
		return
	}

	stores, skipped := s.candidates(area, parsed.Elements)
	if err := s.scoreNearby(r.Context(), stores); err != nil {
		writeScoreError(w, err)
		return
	}
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].Result.Score != stores[j].Result.Score {
			return stores[i].Result.Score > stores[j].Result.Score
		}
		return stores[i].DistanceM < stores[j].DistanceM
	})
	s.recordNearby(r.Context(), stores)

	if q.Get("format") == "geojson" {
		writeGeoJSON(w, area, stores)
		return
	}

	b := area.Bounds()
	writeJSON(w, http.StatusOK, NearbyResponse{
		Center:  [2]float64{area.Lat(), area.Lon()},
		Radius:  area.Radius,
		BBox:    [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)},
		Count:   len(stores),
		Skipped: skipped,
		Stores:  stores,
	})
}

// candidates keeps named nodes, nearest first, up to MaxNearby.
func (s *Server) candidates(area overpass.Area, elements []overpass.Element) ([]NearbyStore, int) {
	out := make([]NearbyStore, 0, len(elements))
	for _, el := range elements {
		if el.Name() == "" || (el.Lat == 0 && el.Lon == 0) {
			continue
		}
		out = append(out, NearbyStore{
			OSMID:      el.Key(),
			Name:       el.Name(),
			Category:   el.Category(),
			PostalCode: el.PostalCode(),
			Lat:        el.Lat,
			Lon:        el.Lon,
			DistanceM:  area.DistanceMeters(el.Point()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })

	skipped := len(elements) - len(out)
	if len(out) > s.cfg.MaxNearby {
		skipped += len(out) - s.cfg.MaxNearby
		out = out[:s.cfg.MaxNearby]
	}
	return out, skipped
}

// scoreNearby scores every candidate in place with bounded concurrency.
func (s *Server) scoreNearby(ctx context.Context, stores []NearbyStore) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.NearbyConcurrency)
	for i := range stores {
		g.Go(func() error {
			st := &stores[i]
			res, err := s.deps.Scorer.ScoreSimple(gctx, ejv.BusinessProfile{
				ID:           st.OSMID,
				Name:         st.Name,
				PostalCode:   st.PostalCode,
				IndustryHint: st.Category,
			})
			if err != nil {
				return err
			}
			st.Result = res
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) recordNearby(ctx context.Context, stores []NearbyStore) {
	if s.deps.Store == nil || len(stores) == 0 {
		return
	}
	recs := make([]store.ScoreRecord, 0, len(stores))
	for _, st := range stores {
		rec, err := newRecord(store.KindNearby, st.Result, st.Result.Value.Retained, ejv.MinParticipationFactor, st)
		if err != nil {
			continue
		}
		recs = append(recs, *rec)
	}
	if _, err := s.deps.Store.SaveScores(ctx, recs); err != nil {
		zap.L().Warn("server: save nearby history", zap.Int("count", len(recs)), zap.Error(err))
	}
}

func writeGeoJSON(w http.ResponseWriter, area overpass.Area, stores []NearbyStore) {
	fc := &geojson.FeatureCollection{
		BBox:     area.Bounds(),
		Features: make([]*geojson.Feature, 0, len(stores)),
	}
	for _, st := range stores {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       st.OSMID,
			Geometry: overpass.Element{Lat: st.Lat, Lon: st.Lon}.Point(),
			Properties: map[string]any{
				"name":       st.Name,
				"category":   st.Category,
				"distance_m": st.DistanceM,
				"score":      st.Result.Score,
				"percentage": st.Result.Percentage,
				"size":       st.Result.SizeProfile.Type,
			},
		})
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		zap.L().Warn("server: encode geojson", zap.Error(err))
	}
}
