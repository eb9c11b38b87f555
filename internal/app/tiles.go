package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/uber/h3-go/v4"

	"freshlistings/internal/domain"
)

const (
	MaxZoom       = 22
	earthRadiusKm = 6371
)

type TileQuery struct {
	TopLeft     domain.GeoPoint
	BottomRight domain.GeoPoint
	Zoom        int
	Keyword     string
}

// TileService aggregates keyword matches into weighted hex tiles for a map viewport.
type TileService struct{ index domain.ListingIndex }

func NewTileService(idx domain.ListingIndex) *TileService { return &TileService{index: idx} }

func (s *TileService) Tiles(ctx context.Context, q TileQuery) ([]domain.MapTile, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	res := ResolutionForZoom(q.Zoom)
	cells, err := s.index.AggregateCells(ctx, domain.CellAggregation{
		Keyword:    strings.TrimSpace(q.Keyword),
		Resolution: res,
		Bounds:     ExpandBounds(q.TopLeft, q.BottomRight, res),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return nil, err
	}
	return WeighTiles(cells), nil
}

func (q TileQuery) validate() error {
	for _, p := range []domain.GeoPoint{q.TopLeft, q.BottomRight} {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return fmt.Errorf("%w: coordinate %v,%v out of range", domain.ErrInvalidInput, p.Lat, p.Lng)
		}
	}
	if q.Zoom < 0 || q.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom must be between 0 and %d", domain.ErrInvalidInput, MaxZoom)
	}
	if strings.TrimSpace(q.Keyword) == "" {
		return fmt.Errorf("%w: keywords are required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(q.Keyword) > MaxQueryLength {
		return fmt.Errorf("%w: keywords longer than %d characters", domain.ErrInvalidInput, MaxQueryLength)
	}
	return nil
}

// ResolutionForZoom picks the hex resolution for a map zoom level. Non-decreasing in zoom.
func ResolutionForZoom(zoom int) int {
	switch {
	case zoom <= 3:
		return 1
	case zoom <= 5:
		return 2
	case zoom <= 7:
		return 3
	case zoom <= 9:
		return 4
	case zoom <= 11:
		return 6
	case zoom <= 13:
		return 8
	case zoom <= 15:
		return 9
	case zoom <= 17:
		return 10
	case zoom <= 18:
		return 11
	default:
		return 12
	}
}

// Margin is two average hex edges at res, in degrees, so cells straddling the viewport edge are kept.
func Margin(res int) float64 {
	return 2 * (h3.HexagonEdgeLengthAvgKm(res) / earthRadiusKm) * 180 / math.Pi
}

// ExpandBounds normalises the two corners and grows the box by Margin, clamped to valid coordinates.
func ExpandBounds(a, b domain.GeoPoint, res int) domain.BoundingBox {
	m := Margin(res)
	return domain.BoundingBox{
		Top:    math.Min(90, math.Max(a.Lat, b.Lat)+m),
		Bottom: math.Max(-90, math.Min(a.Lat, b.Lat)-m),
		Left:   math.Max(-180, math.Min(a.Lng, b.Lng)-m),
		Right:  math.Min(180, math.Max(a.Lng, b.Lng)+m),
	}
}

// WeighTiles scales counts into [0.2, 0.7] relative to the busiest cell. Order is preserved.
func WeighTiles(cells []domain.CellCount) []domain.MapTile {
	tiles := make([]domain.MapTile, 0, len(cells))
	highest := 0
	for _, c := range cells {
		highest = max(highest, c.Count)
	}
	for _, c := range cells {
		w := 0.2
		if highest > 0 {
			w = float64(c.Count)/float64(highest)*0.5 + 0.2
		}
		tiles = append(tiles, domain.MapTile{
			SpatialIndex: c.Index,
			Count:        c.Count,
			FillWeight:   w,
			Label:        fmt.Sprintf("%d total listings", c.Count),
		})
	}
	return tiles
}
