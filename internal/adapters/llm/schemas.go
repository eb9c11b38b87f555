package llm

import (
	"errors"
	"fmt"
	"strconv"

	"freshlistings/internal/domain"
)

type ClassifyOutput struct {
	KeyTerms []domain.KeyTerm `json:"keyTerms"`
}

type RangeOutput = domain.MinMaxRange

type LocationOutput = domain.LocationFilter

// FiltersOutput is the single-shot shape. Intention is free text until validated.
type FiltersOutput struct {
	Intention    string                 `json:"intention,omitempty"`
	NumBeds      *domain.MinMaxRange    `json:"numBeds,omitempty"`
	NumBathrooms *domain.MinMaxRange    `json:"numBathrooms,omitempty"`
	Price        *domain.MinMaxRange    `json:"price,omitempty"`
	Location     *domain.LocationFilter `json:"location,omitempty"`
	Keywords     []string               `json:"keywords"`
}

const minMaxJSON = `{"type":"object","properties":{"min":{"type":"integer","minimum":0},"max":{"type":"integer"}},"additionalProperties":false}`

const locationJSON = `{"type":"object","properties":{` +
	`"place":{"type":"string","description":"The free text place the user is looking for listings in or around, such as a city, neighborhood, nearby amenity or place ie: 'MCG', 'Richmond', 'the beach'."},` +
	`"distance":{"type":"object","description":"The distance from the place the user is interested in.","properties":{` +
	`"value":{"type":"number","description":"The distance value specified by the user, such as 1km, 10 miles, etc."},` +
	`"unit":{"type":"string","enum":["km","m","miles","nauticalmiles","minutes","hours"]}},"required":["value","unit"]}},` +
	`"additionalProperties":false}`

var ClassifySchema = Schema[ClassifyOutput]{
	Name: "classify",
	JSON: `{"type":"object","properties":{"keyTerms":{"type":"array","description":"List of key terms describing what the user asked for",` +
		`"items":{"type":"object","properties":{"term":{"type":"string"},` +
		`"descriptor":{"type":"string","description":"include 'under', 'over', 'around'"},` +
		`"type":{"type":"string","enum":["bedroom","bathroom","location","price","other"]}},"required":["term","type"]}}},` +
		`"required":["keyTerms"]}`,
	Validate: func(o *ClassifyOutput) error {
		if o.KeyTerms == nil {
			return errors.New("keyTerms missing")
		}
		for i, t := range o.KeyTerms {
			if !t.Category.Valid() {
				return fmt.Errorf("keyTerms[%d]: unknown type %q", i, t.Category)
			}
		}
		return nil
	},
}

var RangeSchema = Schema[RangeOutput]{
	Name:     "min_max",
	JSON:     minMaxJSON,
	Validate: validateRange,
}

var LocationSchema = Schema[LocationOutput]{
	Name:     "location",
	JSON:     locationJSON,
	Validate: validateLocation,
}

var FiltersSchema = Schema[FiltersOutput]{
	Name: "query_filters",
	JSON: `{"type":"object","properties":{` +
		`"intention":{"type":"string","enum":["buy","rent","invest","first home","vacation","other"],"description":"The intention of the user when searching for listings, such as buying, renting, investing, etc."},` +
		`"numBeds":` + withDescription(minMaxJSON, "The number of beds or bedrooms.") + `,` +
		`"numBathrooms":` + withDescription(minMaxJSON, "The number of bathrooms, toilets or showers, assume a minimum of 1 if no exact count.") + `,` +
		`"price":` + withDescription(minMaxJSON, "The numeric price range specified by the user, if they specified one.") + `,` +
		`"location":` + withDescription(locationJSON, "A place or area defined by the user.") + `,` +
		`"keywords":{"type":"array","items":{"type":"string"},"description":"Features a user is looking for in the property that are NOT captured by the other fields, such as \"pool\", \"wifi\", \"mountain views\" etc."}},` +
		`"required":["keywords"]}`,
	Validate: func(o *FiltersOutput) error {
		if o.Intention != "" {
			if _, ok := domain.ParseIntention(o.Intention); !ok {
				return fmt.Errorf("unknown intention %q", o.Intention)
			}
		}
		for name, r := range map[string]*domain.MinMaxRange{"numBeds": o.NumBeds, "numBathrooms": o.NumBathrooms, "price": o.Price} {
			if r == nil {
				continue
			}
			if err := validateRange(r); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if o.Location != nil {
			if err := validateLocation(o.Location); err != nil {
				return fmt.Errorf("location: %w", err)
			}
		}
		if o.Keywords == nil {
			o.Keywords = []string{}
		}
		return nil
	},
}

func validateRange(r *domain.MinMaxRange) error {
	if r.Min != nil && *r.Min < 0 {
		return fmt.Errorf("min %d is negative", *r.Min)
	}
	if r.Max != nil && *r.Max < 0 {
		return fmt.Errorf("max %d is negative", *r.Max)
	}
	return nil
}

func validateLocation(l *domain.LocationFilter) error {
	if d := l.Distance; d != nil {
		if !d.Unit.Valid() {
			return fmt.Errorf("unknown distance unit %q", d.Unit)
		}
		if d.Value < 0 {
			return fmt.Errorf("distance %v is negative", d.Value)
		}
	}
	return nil
}

// withDescription splices a description into a one-object schema literal.
func withDescription(schema, desc string) string {
	return `{"description":` + strconv.Quote(desc) + `,` + schema[1:]
}
