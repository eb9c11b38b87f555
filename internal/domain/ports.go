package domain

import "context"

// ListingIndex is the search engine holding listing documents.
type ListingIndex interface {
	GetListing(ctx context.Context, id string) (Listing, error)
	Search(ctx context.Context, req SearchRequest) (SearchPage, error)
	AggregateCells(ctx context.Context, agg CellAggregation) ([]CellCount, error)
}

// Geocoder turns free-text addresses into candidate coordinates, best match first.
type Geocoder interface {
	Lookup(ctx context.Context, address string) ([]GeocodeCandidate, error)
}

// Cache stores JSON-serialisable values. ttlSec <= 0 means no expiry.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type SearchLogRepository interface {
	LogSearch(ctx context.Context, e SearchLogEntry) error
}

type GeocodeCandidate struct {
	FormattedAddress string  `json:"formattedAddress"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

type ResolvedPlace struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// ModelID names a registered extraction model, e.g. "gemini-2.5-flash".
type ModelID string

type Strategy string

const (
	StrategyTwoShot    Strategy = "two-shot"
	StrategySingleShot Strategy = "single-shot"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case "", StrategyTwoShot:
		return StrategyTwoShot, true
	case StrategySingleShot:
		return StrategySingleShot, true
	}
	return "", false
}
