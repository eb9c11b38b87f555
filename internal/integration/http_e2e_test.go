//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"freshlistings/internal/adapters/geocode"
	server "freshlistings/internal/adapters/http_server"
	"freshlistings/internal/adapters/llm"
	opensearchad "freshlistings/internal/adapters/opensearch"
	redisad "freshlistings/internal/adapters/redis"
	"freshlistings/internal/app"
	"freshlistings/internal/domain"
)

const query = "2 bedroom house with a pool near Bondi Beach"

// ---------- model answering by user prompt ----------
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string]string
	calls   int
}

func (m *scriptedModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	user := msgs[len(msgs)-1].Parts[0].(llms.TextContent).Text
	reply, ok := m.replies[user]
	if !ok {
		reply = "{}"
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func (m *scriptedModel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---------- search engine double ----------
type engine struct {
	mu     sync.Mutex
	bodies []map[string]any
	down   atomic.Bool
}

func (e *engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.down.Load() {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	var body map[string]any
	b, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(b, &body)
	e.mu.Lock()
	e.bodies = append(e.bodies, body)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/_doc/12936"):
		_, _ = w.Write([]byte(`{"_id":"12936","found":true,"_source":{"name":"Bondi pool house","bedrooms":2}}`))
	case strings.HasPrefix(r.URL.Path, "/listings-agg/"):
		_, _ = w.Write([]byte(`{"took":3,"aggregations":{"grouped":{"buckets":[{"key":"86be8d12fffffff","doc_count":4}]}}}`))
	default:
		_, _ = w.Write([]byte(`{"took":17,"hits":{"total":{"value":1},"hits":[
			{"_id":"12936","_source":{"name":"Bondi pool house","bedrooms":2,"location":{"lat":-33.89,"lon":151.27}}}]}}`))
	}
}

func (e *engine) last() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bodies[len(e.bodies)-1]
}

type recordedLogs struct {
	mu      sync.Mutex
	entries []domain.SearchLogEntry
}

func (l *recordedLogs) LogSearch(_ context.Context, e domain.SearchLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

type stack struct {
	api     *httptest.Server
	model   *scriptedModel
	engine  *engine
	logs    *recordedLogs
	geoHits *atomic.Int64
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{
		model: &scriptedModel{replies: map[string]string{
			query: `{"keyTerms":[
				{"term":"2 bedroom","type":"bedroom"},
				{"term":"house","type":"other"},
				{"term":"pool","descriptor":"with a","type":"other"},
				{"term":"Bondi Beach","descriptor":"near","type":"location"}]}`,
			"bedroom range request: 2 bedroom": "```json\n{\"min\": 2}\n```",
			"near Bondi Beach":                 `{"place":"Bondi Beach","distance":{"value":15,"unit":"minutes"}}`,
		}},
		engine:  &engine{},
		logs:    &recordedLogs{},
		geoHits: &atomic.Int64{},
	}

	osSrv := httptest.NewServer(s.engine)
	t.Cleanup(osSrv.Close)

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.geoHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("address") != "Bondi Beach" {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Bondi Beach NSW 2026, Australia",
			"geometry":{"location":{"lat":-33.8915,"lng":151.2767}}}]}`))
	}))
	t.Cleanup(geoSrv.Close)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	reg, err := llm.NewRegistryFromModels(map[domain.ModelID]llms.Model{llm.DefaultModel: s.model}, llm.DefaultModel)
	require.NoError(t, err)
	geo, err := geocode.New(geoSrv.URL, "test-key", 50)
	require.NoError(t, err)
	idx, err := opensearchad.New(opensearchad.Config{Addresses: []string{osSrv.URL}, ModelID: "embed-1"})
	require.NoError(t, err)

	search := app.NewSearchService(
		app.NewDecomposers(llm.NewClient(reg, cache)),
		app.NewGeocodeResolver(geo, cache, 3600),
		idx, s.logs, 10*time.Second,
	)
	srv := server.New(15 * time.Second)
	srv.MountHandlers(&server.Handlers{S: search, T: app.NewTileService(idx), Models: reg})
	s.api = httptest.NewServer(srv.Mux())
	t.Cleanup(s.api.Close)
	return s
}

func (s *stack) getJSON(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	res, err := http.Get(s.api.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

// ---------- the tests ----------
func TestHTTP_EndToEnd_Search(t *testing.T) {
	s := newStack(t)
	path := "/v1/search?q=" + url.QueryEscape(query)

	status, body := s.getJSON(t, path)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 17, body["queryTimeMs"])
	assert.Equal(t, "Bondi Beach NSW 2026, Australia", body["realLocation"])
	listings := body["listings"].([]any)
	require.Len(t, listings, 1)
	assert.Equal(t, "12936", listings[0].(map[string]any)["id"])

	// classify + bedroom range + location; the two "other" terms need no call
	assert.Equal(t, 3, s.model.count())
	assert.EqualValues(t, 1, s.geoHits.Load())

	q := s.engine.last()["query"].(map[string]any)["bool"].(map[string]any)
	assert.Equal(t, []any{
		map[string]any{"range": map[string]any{"bedrooms": map[string]any{"gte": 2.0, "lte": 2.0}}},
		map[string]any{"geo_distance": map[string]any{
			"distance": "25.05km",
			"location": map[string]any{"lat": -33.8915, "lon": 151.2767},
		}},
	}, q["filter"])
	should := q["should"].([]any)
	require.Len(t, should, 2)
	assert.Equal(t, map[string]any{"neural": map[string]any{"name_embedding": map[string]any{
		"query_text": "house pool", "model_id": "embed-1", "k": 10.0, "boost": 4.0,
	}}}, should[0])

	// same query again: extraction and geocoding come from the cache
	status, again := s.getJSON(t, path)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, body["understoodQuery"], again["understoodQuery"])
	assert.Equal(t, 3, s.model.count())
	assert.EqualValues(t, 1, s.geoHits.Load())

	s.logs.mu.Lock()
	defer s.logs.mu.Unlock()
	require.Len(t, s.logs.entries, 2)
	assert.Equal(t, []string{"12936"}, s.logs.entries[0].ListingIDs)
	assert.Equal(t, "two-shot", s.logs.entries[0].Strategy)
}

func TestHTTP_EndToEnd_EngineDown(t *testing.T) {
	s := newStack(t)
	s.engine.down.Store(true)

	status, body := s.getJSON(t, "/v1/search?q="+url.QueryEscape(query))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, app.ReasonEngineDown, body["reason"])
	assert.Equal(t, []any{}, body["listings"])
	assert.NotNil(t, body["understoodQuery"], "the understood query is still reported")
}

func TestHTTP_EndToEnd_TilesAndListing(t *testing.T) {
	s := newStack(t)

	status, body := s.getJSON(t, "/v1/map/cells?topLeft=-33.85,151.20&bottomRight=-33.95,151.30&zoom=12&keywords=pool")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{map[string]any{
		"spatialIndex": "86be8d12fffffff", "count": 4.0, "fillWeight": 0.7, "descriptiveLabel": "4 total listings",
	}}, body["tiles"])

	agg := s.engine.last()["aggregations"].(map[string]any)["grouped"].(map[string]any)["geohex_grid"].(map[string]any)
	assert.EqualValues(t, 8, agg["precision"])

	status, body = s.getJSON(t, "/v1/listings/12936")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bondi pool house", body["name"])
}
