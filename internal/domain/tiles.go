package domain

// BoundingBox is a lat/lng rectangle; Top >= Bottom and Right >= Left.
type BoundingBox struct {
	Top, Left, Bottom, Right float64
}

// CellAggregation asks the index to count keyword matches per hex cell inside Bounds.
type CellAggregation struct {
	Keyword    string
	Resolution int
	Bounds     BoundingBox
}

type CellCount struct {
	Index string
	Count int
}

// MapTile is computed per request and never stored.
type MapTile struct {
	SpatialIndex string  `json:"spatialIndex"`
	Count        int     `json:"count"`
	FillWeight   float64 `json:"fillWeight"`
	Label        string  `json:"descriptiveLabel"`
}
