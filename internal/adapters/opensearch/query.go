package opensearchad

import "freshlistings/internal/domain"

// searchBody renders a compiled request as OpenSearch query DSL. Paging travels as URL params.
func searchBody(req domain.SearchRequest, modelID string) map[string]any {
	b := map[string]any{}

	if len(req.Semantic) > 0 {
		should := make([]any, 0, len(req.Semantic))
		for _, s := range req.Semantic {
			q := map[string]any{"query_text": s.Text, "k": s.K}
			if modelID != "" {
				q["model_id"] = modelID
			}
			if s.Boost != 0 {
				q["boost"] = s.Boost
			}
			should = append(should, map[string]any{"neural": map[string]any{s.Field: q}})
		}
		b["should"] = should
		b["minimum_should_match"] = req.MinimumShouldMatch
	}

	var filter []any
	for _, r := range req.Ranges {
		bounds := map[string]any{}
		if r.Gte != nil {
			bounds["gte"] = *r.Gte
		}
		if r.Lte != nil {
			bounds["lte"] = *r.Lte
		}
		filter = append(filter, map[string]any{"range": map[string]any{r.Field: bounds}})
	}
	if g := req.Geo; g != nil {
		filter = append(filter, map[string]any{"geo_distance": map[string]any{
			"distance": g.Radius,
			g.Field:    map[string]any{"lat": g.Center.Lat, "lon": g.Center.Lng},
		}})
	}
	if len(filter) > 0 {
		b["filter"] = filter
	}

	return map[string]any{"query": map[string]any{"bool": b}}
}
