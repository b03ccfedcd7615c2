package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleScoreQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ejv.BusinessProfile{
		ID:           firstOf(q.Get("id"), q.Get("business_id")),
		Name:         q.Get("name"),
		Location:     q.Get("location"),
		PostalCode:   firstOf(q.Get("postal_code"), q.Get("zip")),
		IndustryHint: q.Get("industry"),
	}
	if state, county, tract := q.Get("state"), q.Get("county"), q.Get("tract"); state != "" && county != "" && tract != "" {
		p.Tract = &ejv.CensusTract{State: state, County: county, Tract: tract}
	}
	s.scoreSimple(w, r, p)
}

func (s *Server) handleScoreJSON(w http.ResponseWriter, r *http.Request) {
	var p ejv.BusinessProfile
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.scoreSimple(w, r, p)
}

func (s *Server) scoreSimple(w http.ResponseWriter, r *http.Request, p ejv.BusinessProfile) {
	res, err := s.deps.Scorer.ScoreSimple(r.Context(), p)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	s.record(r.Context(), store.KindSimple, res, res.Value.Retained, ejv.MinParticipationFactor, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleParticipation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateParticipation(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ejv.ParticipationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.deps.Scorer.ScoreWithParticipation(r.Context(), req)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	s.record(r.Context(), store.KindParticipation, res.Result, res.RetainedForPurchase, res.PAF, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePathways(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pathways":       s.deps.Tables.PathwayList(),
		"max_factor":     ejv.MaxParticipationFactor,
		"tables_version": s.deps.Tables.Version,
	})
}

// record persists a score best-effort. History failures never fail the
// scoring request.
func (s *Server) record(ctx context.Context, kind string, res *ejv.Result, retained, paf float64, payload any) {
	if s.deps.Store == nil {
		return
	}
	rec, err := newRecord(kind, res, retained, paf, payload)
	if err == nil {
		err = s.deps.Store.SaveScore(ctx, rec)
	}
	if err != nil {
		zap.L().Warn("server: save score history",
			zap.String("business_id", res.BusinessID),
			zap.Error(err),
		)
	}
}

func newRecord(kind string, res *ejv.Result, retained, paf float64, payload any) (*store.ScoreRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &store.ScoreRecord{
		Kind:       kind,
		BusinessID: res.BusinessID,
		Name:       res.Name,
		PostalCode: res.PostalCode,
		Score:      res.Score,
		Retained:   retained,
		PAF:        paf,
		Result:     raw,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
