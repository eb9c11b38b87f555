package domain

import "time"

// Listing is a document from the listings index. Created by the ingestion process, never mutated here.
type Listing struct {
	ID                   string   `json:"id"`
	ListingURL           string   `json:"listing_url,omitempty"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	PictureURL           string   `json:"picture_url,omitempty"`
	NeighborhoodOverview string   `json:"neighborhood_overview,omitempty"`
	Location             LatLon   `json:"location"`
	PropertyType         string   `json:"property_type,omitempty"`
	RoomType             string   `json:"room_type,omitempty"`
	Accommodates         int      `json:"accommodates,omitempty"`
	Bathrooms            float64  `json:"bathrooms,omitempty"`
	Bedrooms             int      `json:"bedrooms,omitempty"`
	Beds                 int      `json:"beds,omitempty"`
	Amenities            []string `json:"amenities,omitempty"`
	AmenitiesText        string   `json:"amenities_text,omitempty"`
	Price                float64  `json:"price,omitempty"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RangeFilter is an inclusive bound on a numeric document field.
type RangeFilter struct {
	Field string
	Gte   *int
	Lte   *int
}

// GeoDistanceFilter keeps documents within Radius (e.g. "10km") of Center.
type GeoDistanceFilter struct {
	Field  string
	Center GeoPoint
	Radius string
}

// SemanticQuery ranks by similarity of Text against an embedded field.
type SemanticQuery struct {
	Field string
	Text  string
	Boost float64
	K     int
}

// SearchRequest is a compiled, engine-neutral hybrid query.
type SearchRequest struct {
	Ranges             []RangeFilter
	Geo                *GeoDistanceFilter
	Semantic           []SemanticQuery
	MinimumShouldMatch int
	From               int
	Size               int
}

type SearchPage struct {
	Listings []Listing
	Total    int
	Took     time.Duration
}

// SearchLogEntry is one audited search.
type SearchLogEntry struct {
	Query       string
	Model       string
	Strategy    string
	Filters     []byte
	ResultCount int
	ListingIDs  []string
	TookMs      int64
	Reason      string
	CreatedAt   time.Time
}
