package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/overpass"
)

// overpassFailure is the payload returned when no mirror answered. The
// elements array keeps map clients that iterate it from breaking.
type overpassFailure struct {
	Error    string `json:"error"`
	Elements []any  `json:"elements"`
}

func writeOverpassError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, overpassFailure{Error: msg, Elements: []any{}})
}

func (s *Server) handleOverpass(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overpass == nil {
		writeOverpassError(w, http.StatusServiceUnavailable, "overpass proxy is disabled")
		return
	}
	query, err := overpassQuery(r)
	if err != nil {
		writeOverpassError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body, err := s.deps.Overpass.Query(r.Context(), query)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			zap.L().Debug("server: write overpass body", zap.Error(err))
		}
	case errors.Is(err, overpass.ErrEmptyQuery):
		writeOverpassError(w, http.StatusBadRequest, "query is required")
	case errors.Is(err, overpass.ErrBadQuery):
		writeOverpassError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, overpass.ErrTooLarge):
		writeOverpassError(w, http.StatusBadGateway, "overpass response too large")
	default:
		writeOverpassError(w, http.StatusServiceUnavailable, "All Overpass servers failed")
	}
}

// overpassQuery extracts the query from a form field "data", the URL
// parameter "data", or the raw request body.
func overpassQuery(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("data"), nil
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return r.PostForm.Get("data"), nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
