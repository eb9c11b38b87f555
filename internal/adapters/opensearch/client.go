// Package opensearchad is the ListingIndex backed by an OpenSearch cluster.
package opensearchad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"freshlistings/internal/adapters/observability"
	"freshlistings/internal/domain"
)

const (
	DefaultListingsIndex  = "listings"
	DefaultAggregateIndex = "listings-agg"
)

type Config struct {
	Addresses      []string
	Username       string
	Password       string
	ModelID        string // neural search embedding model
	ListingsIndex  string
	AggregateIndex string
}

type Index struct {
	c        *opensearch.Client
	modelID  string
	listings string
	agg      string
}

func New(cfg Config) (*Index, error) {
	c, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	idx := &Index{c: c, modelID: cfg.ModelID, listings: cfg.ListingsIndex, agg: cfg.AggregateIndex}
	if idx.listings == "" {
		idx.listings = DefaultListingsIndex
	}
	if idx.agg == "" {
		idx.agg = DefaultAggregateIndex
	}
	return idx, nil
}

type hit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []hit `json:"hits"`
	} `json:"hits"`
}

func (i *Index) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchPage, error) {
	body, err := json.Marshal(searchBody(req, i.modelID))
	if err != nil {
		return domain.SearchPage{}, err
	}
	start := time.Now()
	resp, err := i.c.Search(
		i.c.Search.WithContext(ctx),
		i.c.Search.WithIndex(i.listings),
		i.c.Search.WithBody(bytes.NewReader(body)),
		i.c.Search.WithFrom(req.From),
		i.c.Search.WithSize(req.Size),
	)
	var out searchResponse
	if err := i.decode("search", start, resp, err, &out); err != nil {
		return domain.SearchPage{}, err
	}

	page := domain.SearchPage{
		Listings: make([]domain.Listing, 0, len(out.Hits.Hits)),
		Total:    out.Hits.Total.Value,
		Took:     time.Duration(out.Took) * time.Millisecond,
	}
	for _, h := range out.Hits.Hits {
		l, err := listingFrom(h)
		if err != nil {
			return domain.SearchPage{}, fmt.Errorf("%w: decode hit %s: %w", domain.ErrUpstream, h.ID, err)
		}
		page.Listings = append(page.Listings, l)
	}
	return page, nil
}

func (i *Index) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	start := time.Now()
	resp, err := i.c.Get(i.listings, id, i.c.Get.WithContext(ctx))
	if err == nil && resp.StatusCode == http.StatusNotFound {
		observability.ObserveExternal("opensearch", "get", resp.StatusCode, time.Since(start))
		resp.Body.Close()
		return domain.Listing{}, domain.ErrNotFound
	}
	var h hit
	if err := i.decode("get", start, resp, err, &h); err != nil {
		return domain.Listing{}, err
	}
	return listingFrom(h)
}

func listingFrom(h hit) (domain.Listing, error) {
	var l domain.Listing
	if len(h.Source) > 0 {
		if err := json.Unmarshal(h.Source, &l); err != nil {
			return domain.Listing{}, err
		}
	}
	l.ID = h.ID
	return l, nil
}

// decode records the call and unmarshals a successful response into out.
// Every failure wraps domain.ErrUpstream.
func (i *Index) decode(endpoint string, start time.Time, resp *opensearchapi.Response, err error, out any) error {
	if err != nil {
		observability.ObserveExternal("opensearch", endpoint, 0, time.Since(start))
		return fmt.Errorf("%w: opensearch %s: %w", domain.ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("opensearch", endpoint, resp.StatusCode, time.Since(start))

	if resp.IsError() {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: opensearch %s status %d: %s", domain.ErrUpstream, endpoint, resp.StatusCode, bytes.TrimSpace(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: opensearch %s: empty body", domain.ErrUpstream, endpoint)
		}
		return fmt.Errorf("%w: opensearch %s: %w", domain.ErrUpstream, endpoint, err)
	}
	return nil
}
