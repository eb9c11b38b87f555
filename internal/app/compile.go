package app

import (
	"math"
	"strconv"
	"strings"

	"freshlistings/internal/domain"
)

const (
	PageSize = 10
	// MaxPage keeps page*PageSize within int.
	MaxPage = math.MaxInt/PageSize - 1

	defaultRadiusKm = 10
	// average travel speed used to turn travel time into distance
	kmPerMinute = 1.67

	nameEmbeddingField        = "name_embedding"
	descriptionEmbeddingField = "description_embedding"
	nameBoost                 = 4
	descriptionBoost          = 2
	semanticK                 = 10
)

// CompileSearch maps search input onto an engine-neutral request for the given page.
// Price is inferred but not filtered on.
func CompileSearch(in domain.SearchInput, page int) domain.SearchRequest {
	page = min(max(page, 0), MaxPage)
	req := domain.SearchRequest{From: page * PageSize, Size: PageSize}

	if r, ok := rangeFilter("bedrooms", in.NumBeds); ok {
		req.Ranges = append(req.Ranges, r)
	}
	if r, ok := rangeFilter("bathrooms", in.NumBathrooms); ok {
		req.Ranges = append(req.Ranges, r)
	}

	if in.Point != nil {
		var d *domain.Distance
		if in.Location != nil {
			d = in.Location.Distance
		}
		req.Geo = &domain.GeoDistanceFilter{Field: "location", Center: *in.Point, Radius: Radius(d)}
	}

	if len(in.Keywords) > 0 {
		text := strings.Join(in.Keywords, " ")
		req.Semantic = []domain.SemanticQuery{
			{Field: nameEmbeddingField, Text: text, Boost: nameBoost, K: semanticK},
			{Field: descriptionEmbeddingField, Text: text, Boost: descriptionBoost, K: semanticK},
		}
		req.MinimumShouldMatch = 1
	}
	return req
}

func rangeFilter(field string, r *domain.MinMaxRange) (domain.RangeFilter, bool) {
	if r.Empty() {
		return domain.RangeFilter{}, false
	}
	return domain.RangeFilter{Field: field, Gte: r.Min, Lte: r.Max}, true
}

// Radius renders the geo filter distance, e.g. "10km". Travel times become kilometres.
func Radius(d *domain.Distance) string {
	if d == nil {
		return formatNumber(defaultRadiusKm) + string(domain.UnitKilometres)
	}
	switch d.Unit {
	case domain.UnitMinutes:
		return formatNumber(kmPerMinute*d.Value) + string(domain.UnitKilometres)
	case domain.UnitHours:
		return formatNumber(kmPerMinute*60*d.Value) + string(domain.UnitKilometres)
	default:
		return formatNumber(d.Value) + string(d.Unit)
	}
}

// formatNumber rounds to 6 decimals and prints the shortest form, so 1.67*60 is "100.2".
func formatNumber(v float64) string {
	v = math.Round(v*1e6) / 1e6
	return strconv.FormatFloat(v, 'f', -1, 64)
}
