package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoequity/internal/assistant"
	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/metrics"
	"github.com/sells-group/geoequity/internal/refdata"
	"github.com/sells-group/geoequity/internal/store"
	"github.com/sells-group/geoequity/pkg/anthropic"
)

// defaultReader answers every indicator read with its documented default.
type defaultReader struct{}

func (defaultReader) FetchWageForOccupation(context.Context, string) (float64, bool) { return 0, false }

func (defaultReader) FetchLocalIndicators(context.Context, string) indicators.EconomicIndicators {
	return indicators.DefaultIndicators()
}

func (defaultReader) FetchMedianIncomeForTract(context.Context, string, string, string) float64 {
	return indicators.DefaultMedianIncome
}

func (defaultReader) FetchTypicalEmployees(context.Context, string) (int, bool) { return 0, false }

// fakeOverpass returns a scripted body or error and records queries.
type fakeOverpass struct {
	mu      sync.Mutex
	body    []byte
	err     error
	queries []string
}

func (f *fakeOverpass) Query(_ context.Context, q string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.body, f.err
}

func (f *fakeOverpass) States() map[string]string {
	return map[string]string{"overpass-api.de": "closed"}
}

func (f *fakeOverpass) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// fakeClaude answers every message with a fixed text.
type fakeClaude struct {
	text string
	last anthropic.MessageRequest
}

func (f *fakeClaude) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}}}, nil
}

type testEnv struct {
	srv      *Server
	store    *store.SQLiteStore
	overpass *fakeOverpass
	claude   *fakeClaude
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	engine, err := ejv.NewEngine(refdata.Default(), defaultReader{},
		ejv.WithObserver(metrics.Nop{}),
		ejv.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	op := &fakeOverpass{body: []byte(`{"elements":[]}`)}
	claude := &fakeClaude{text: "Shop local."}
	srv, err := New(Config{}, Deps{
		Scorer:    engine,
		Tables:    refdata.Default(),
		Overpass:  op,
		Store:     st,
		Assistant: assistant.New(claude, assistant.Config{}),
		Gatherer:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return &testEnv{srv: srv, store: st, overpass: op, claude: claude}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, target, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
