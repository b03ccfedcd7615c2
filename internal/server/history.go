package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/store"
)

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "score history is disabled")
		return
	}
	q := r.URL.Query()
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	offset, err := optionalInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	recs, err := s.deps.Store.ListScores(r.Context(), store.ScoreFilter{
		BusinessID: q.Get("business_id"),
		Kind:       q.Get("kind"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		zap.L().Error("server: list score history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list score history")
		return
	}
	if recs == nil {
		recs = []store.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": recs, "count": len(recs)})
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "score history is disabled")
		return
	}
	rec, err := s.deps.Store.GetScore(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "score not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get score history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load score")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "score history is disabled")
		return
	}
	sum, err := s.deps.Store.Summary(r.Context())
	if err != nil {
		zap.L().Error("server: summarize score history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to summarize score history")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
