package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MinMaxRange is an inclusive numeric bound. Min > Max is passed through untouched.
type MinMaxRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Empty reports whether neither bound is set.
func (r *MinMaxRange) Empty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

type DistanceUnit string

const (
	UnitKilometres    DistanceUnit = "km"
	UnitMetres        DistanceUnit = "m"
	UnitMiles         DistanceUnit = "miles"
	UnitNauticalMiles DistanceUnit = "nauticalmiles"
	UnitMinutes       DistanceUnit = "minutes"
	UnitHours         DistanceUnit = "hours"
)

func (u DistanceUnit) Valid() bool {
	switch u {
	case UnitKilometres, UnitMetres, UnitMiles, UnitNauticalMiles, UnitMinutes, UnitHours:
		return true
	}
	return false
}

type Distance struct {
	Value float64      `json:"value"`
	Unit  DistanceUnit `json:"unit"`
}

// LocationFilter names an area or landmark, optionally with a distance around it.
type LocationFilter struct {
	Place    *string   `json:"place,omitempty"`
	Distance *Distance `json:"distance,omitempty"`
}

type TermCategory string

const (
	CategoryBedroom  TermCategory = "bedroom"
	CategoryBathroom TermCategory = "bathroom"
	CategoryLocation TermCategory = "location"
	CategoryPrice    TermCategory = "price"
	CategoryOther    TermCategory = "other"
)

func (c TermCategory) Valid() bool {
	switch c {
	case CategoryBedroom, CategoryBathroom, CategoryLocation, CategoryPrice, CategoryOther:
		return true
	}
	return false
}

// KeyTerm is one classified fragment of a query.
type KeyTerm struct {
	Term       string       `json:"term"`
	Descriptor string       `json:"descriptor,omitempty"`
	Category   TermCategory `json:"type"`
}

// Text joins descriptor and term, skipping empty parts.
func (k KeyTerm) Text() string {
	parts := make([]string, 0, 2)
	if d := strings.TrimSpace(k.Descriptor); d != "" {
		parts = append(parts, d)
	}
	if t := strings.TrimSpace(k.Term); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

type Intention string

const (
	IntentionBuy       Intention = "buy"
	IntentionRent      Intention = "rent"
	IntentionInvest    Intention = "invest"
	IntentionFirstHome Intention = "first_home"
	IntentionVacation  Intention = "vacation"
	IntentionOther     Intention = "other"
)

// ParseIntention accepts the canonical values plus the "first home" spelling models tend to emit.
func ParseIntention(s string) (Intention, bool) {
	v := Intention(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	switch v {
	case IntentionBuy, IntentionRent, IntentionInvest, IntentionFirstHome, IntentionVacation, IntentionOther:
		return v, true
	}
	return "", false
}

// InferredFilters is the canonical output of query decomposition.
type InferredFilters struct {
	Intention    *Intention      `json:"intention,omitempty"`
	NumBeds      *MinMaxRange    `json:"numBeds,omitempty"`
	NumBathrooms *MinMaxRange    `json:"numBathrooms,omitempty"`
	Price        *MinMaxRange    `json:"price,omitempty"`
	Location     *LocationFilter `json:"location,omitempty"`
	Keywords     []string        `json:"keywords"`
}

// Place returns the free-text place to geocode, or "" when none was inferred.
func (f InferredFilters) Place() string {
	if f.Location == nil || f.Location.Place == nil {
		return ""
	}
	return strings.TrimSpace(*f.Location.Place)
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchInput is InferredFilters plus the resolved coordinates of its place.
type SearchInput struct {
	InferredFilters
	Point       *GeoPoint `json:"point,omitempty"`
	FullAddress *string   `json:"fullAddress,omitempty"`
}

// ParseGeoPoint reads "lat,lng". Range checks are left to the caller.
func ParseGeoPoint(s string) (GeoPoint, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return GeoPoint{}, fmt.Errorf("%w: %q is not lat,lng", ErrInvalidInput, s)
	}
	la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err1 != nil || err2 != nil {
		return GeoPoint{}, fmt.Errorf("%w: %q is not lat,lng", ErrInvalidInput, s)
	}
	return GeoPoint{Lat: la, Lng: ln}, nil
}
