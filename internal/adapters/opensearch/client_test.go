package opensearchad_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opensearchad "freshlistings/internal/adapters/opensearch"
	"freshlistings/internal/domain"
)

type captured struct {
	method, path string
	query        map[string]string
	body         map[string]any
}

func newServer(t *testing.T, status int, reply string) (*opensearchad.Index, *captured) {
	t.Helper()
	got := &captured{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method, got.path = r.Method, r.URL.Path
		got.query = map[string]string{}
		for k := range r.URL.Query() {
			got.query[k] = r.URL.Query().Get(k)
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &got.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)

	idx, err := opensearchad.New(opensearchad.Config{Addresses: []string{ts.URL}, ModelID: "model-123"})
	require.NoError(t, err)
	return idx, got
}

const searchReply = `{
  "took": 23,
  "hits": {
    "total": {"value": 57, "relation": "eq"},
    "hits": [
      {"_id": "12936", "_source": {"name": "Beachside studio", "bedrooms": 2, "bathrooms": 1.5,
        "location": {"lat": -33.89, "lon": 151.27}, "amenities": ["Wifi", "Pool"], "price": 180}},
      {"_id": "40211", "_source": {"name": "Dune house", "bedrooms": 2}}
    ]
  }
}`

func TestSearch_RendersHybridQueryAndMapsHits(t *testing.T) {
	idx, got := newServer(t, http.StatusOK, searchReply)

	page, err := idx.Search(context.Background(), domain.SearchRequest{
		Ranges: []domain.RangeFilter{{Field: "bedrooms", Gte: ptr(2), Lte: ptr(2)}, {Field: "bathrooms", Gte: ptr(1)}},
		Geo:    &domain.GeoDistanceFilter{Field: "location", Center: domain.GeoPoint{Lat: -33.89, Lng: 151.27}, Radius: "16.7km"},
		Semantic: []domain.SemanticQuery{
			{Field: "name_embedding", Text: "pool", Boost: 4, K: 10},
			{Field: "description_embedding", Text: "pool", Boost: 2, K: 10},
		},
		MinimumShouldMatch: 1,
		From:               20,
		Size:               10,
	})
	require.NoError(t, err)

	assert.Equal(t, "/listings/_search", got.path)
	assert.Equal(t, "20", got.query["from"])
	assert.Equal(t, "10", got.query["size"])

	want := `{"query":{"bool":{
		"should":[
			{"neural":{"name_embedding":{"query_text":"pool","model_id":"model-123","k":10,"boost":4}}},
			{"neural":{"description_embedding":{"query_text":"pool","model_id":"model-123","k":10,"boost":2}}}],
		"minimum_should_match":1,
		"filter":[
			{"range":{"bedrooms":{"gte":2,"lte":2}}},
			{"range":{"bathrooms":{"gte":1}}},
			{"geo_distance":{"distance":"16.7km","location":{"lat":-33.89,"lon":151.27}}}]}}}`
	var wantBody map[string]any
	require.NoError(t, json.Unmarshal([]byte(want), &wantBody))
	assert.Equal(t, wantBody, got.body)

	assert.Equal(t, 57, page.Total)
	assert.Equal(t, 23*time.Millisecond, page.Took)
	require.Len(t, page.Listings, 2)
	assert.Equal(t, "12936", page.Listings[0].ID)
	assert.Equal(t, "Beachside studio", page.Listings[0].Name)
	assert.Equal(t, 1.5, page.Listings[0].Bathrooms)
	assert.Equal(t, []string{"Wifi", "Pool"}, page.Listings[0].Amenities)
	assert.Equal(t, domain.LatLon{Lat: -33.89, Lon: 151.27}, page.Listings[0].Location)
	assert.Equal(t, "40211", page.Listings[1].ID)
}

func TestSearch_FilterOnlyHasNoShould(t *testing.T) {
	idx, got := newServer(t, http.StatusOK, `{"took":1,"hits":{"total":{"value":0},"hits":[]}}`)

	page, err := idx.Search(context.Background(), domain.SearchRequest{
		Ranges: []domain.RangeFilter{{Field: "bedrooms", Lte: ptr(3)}},
		Size:   10,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Listings)

	b := got.body["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, b, "should")
	assert.NotContains(t, b, "minimum_should_match")
	assert.Len(t, b["filter"], 1)
}

func TestSearch_EngineErrorIsUpstream(t *testing.T) {
	idx, _ := newServer(t, http.StatusInternalServerError, `{"error":{"type":"search_phase_execution_exception"}}`)
	_, err := idx.Search(context.Background(), domain.SearchRequest{Size: 10})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestSearch_UnreachableIsUpstream(t *testing.T) {
	idx, err := opensearchad.New(opensearchad.Config{Addresses: []string{"http://127.0.0.1:1"}})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = idx.Search(ctx, domain.SearchRequest{Size: 10})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestGetListing(t *testing.T) {
	idx, got := newServer(t, http.StatusOK, `{"_index":"listings","_id":"12936","found":true,"_source":{"name":"Beachside studio","room_type":"Entire home/apt"}}`)

	l, err := idx.GetListing(context.Background(), "12936")
	require.NoError(t, err)
	assert.Equal(t, "/listings/_doc/12936", got.path)
	assert.Equal(t, domain.Listing{ID: "12936", Name: "Beachside studio", RoomType: "Entire home/apt"}, l)
}

func TestGetListing_NotFound(t *testing.T) {
	idx, _ := newServer(t, http.StatusNotFound, `{"_index":"listings","_id":"nope","found":false}`)
	_, err := idx.GetListing(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAggregateCells(t *testing.T) {
	idx, got := newServer(t, http.StatusOK, `{"took":4,"hits":{"total":{"value":31},"hits":[]},
		"aggregations":{"grouped":{"buckets":[
			{"key":"83be0efffffffff","doc_count":21},
			{"key":"83be0cfffffffff","doc_count":10}]}}}`)

	cells, err := idx.AggregateCells(context.Background(), domain.CellAggregation{
		Keyword:    "pool",
		Resolution: 3,
		Bounds:     domain.BoundingBox{Top: -37.5, Left: 144.7, Bottom: -38.1, Right: 145.3},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.CellCount{{Index: "83be0efffffffff", Count: 21}, {Index: "83be0cfffffffff", Count: 10}}, cells)

	assert.Equal(t, "/listings-agg/_search", got.path)
	want := `{"size":0,
		"query":{"bool":{"must":[{"match":{"keyword":"pool"}}]}},
		"aggregations":{"grouped":{"geohex_grid":{"field":"location","precision":3,
			"bounds":{"top_left":{"lat":-37.5,"lon":144.7},"bottom_right":{"lat":-38.1,"lon":145.3}}}}}}`
	var wantBody map[string]any
	require.NoError(t, json.Unmarshal([]byte(want), &wantBody))
	assert.Equal(t, wantBody, got.body)
}

func ptr[T any](v T) *T { return &v }
