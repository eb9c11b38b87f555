package opensearchad

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"freshlistings/internal/domain"
)

type aggResponse struct {
	Aggregations struct {
		Grouped struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"grouped"`
	} `json:"aggregations"`
}

// AggregateCells counts keyword matches per geohex cell inside the bounds.
func (i *Index) AggregateCells(ctx context.Context, agg domain.CellAggregation) ([]domain.CellCount, error) {
	body, err := json.Marshal(aggregateBody(agg))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := i.c.Search(
		i.c.Search.WithContext(ctx),
		i.c.Search.WithIndex(i.agg),
		i.c.Search.WithBody(bytes.NewReader(body)),
	)
	var out aggResponse
	if err := i.decode("aggregate", start, resp, err, &out); err != nil {
		return nil, err
	}

	cells := make([]domain.CellCount, 0, len(out.Aggregations.Grouped.Buckets))
	for _, b := range out.Aggregations.Grouped.Buckets {
		cells = append(cells, domain.CellCount{Index: b.Key, Count: b.DocCount})
	}
	return cells, nil
}

func aggregateBody(agg domain.CellAggregation) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{
			"must": []any{map[string]any{"match": map[string]any{"keyword": agg.Keyword}}},
		}},
		"aggregations": map[string]any{"grouped": map[string]any{
			"geohex_grid": map[string]any{
				"field":     "location",
				"precision": agg.Resolution,
				"bounds": map[string]any{
					"top_left":     map[string]any{"lat": agg.Bounds.Top, "lon": agg.Bounds.Left},
					"bottom_right": map[string]any{"lat": agg.Bounds.Bottom, "lon": agg.Bounds.Right},
				},
			},
		}},
	}
}
