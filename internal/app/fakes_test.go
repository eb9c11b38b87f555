package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"freshlistings/internal/domain"
)

// ---- fakes ----

// fakeCompleter answers by user prompt. Unknown prompts return "{}".
type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
	store   map[string]string
}

func newCompleter(replies map[string]string) *fakeCompleter {
	return &fakeCompleter{replies: replies, errs: map[string]error{}, store: map[string]string{}}
}

func (f *fakeCompleter) Complete(_ context.Context, model domain.ModelID, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user)
	if model == "unknown" {
		return "", domain.ErrUnknownModel
	}
	if err, ok := f.errs[user]; ok {
		return "", err
	}
	if r, ok := f.replies[user]; ok {
		return r, nil
	}
	return "{}", nil
}

func (f *fakeCompleter) Recall(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	return v, ok
}

func (f *fakeCompleter) Remember(_ context.Context, key, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = raw
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	ttl   map[string]int
	err   error
}

func newCache() *fakeCache {
	return &fakeCache{store: map[string][]byte{}, ttl: map[string]int{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	b, _ := json.Marshal(v)
	c.store[key] = b
	c.ttl[key] = ttlSec
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string][]domain.GeocodeCandidate
	err     error
	calls   int
}

func (g *fakeGeocoder) Lookup(_ context.Context, address string) ([]domain.GeocodeCandidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.results[address], nil
}

type fakeIndex struct {
	page     domain.SearchPage
	cells    []domain.CellCount
	listing  domain.Listing
	err      error
	searches []domain.SearchRequest
	aggs     []domain.CellAggregation
}

func (f *fakeIndex) GetListing(_ context.Context, id string) (domain.Listing, error) {
	if f.err != nil {
		return domain.Listing{}, f.err
	}
	if id != f.listing.ID {
		return domain.Listing{}, domain.ErrNotFound
	}
	return f.listing, nil
}

func (f *fakeIndex) Search(_ context.Context, req domain.SearchRequest) (domain.SearchPage, error) {
	f.searches = append(f.searches, req)
	return f.page, f.err
}

func (f *fakeIndex) AggregateCells(_ context.Context, agg domain.CellAggregation) ([]domain.CellCount, error) {
	f.aggs = append(f.aggs, agg)
	return f.cells, f.err
}

type fakeLogs struct{ entries []domain.SearchLogEntry }

func (f *fakeLogs) LogSearch(_ context.Context, e domain.SearchLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }
