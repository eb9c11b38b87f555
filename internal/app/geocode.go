package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"freshlistings/internal/domain"
)

// GeocodeResolver turns a place name into coordinates through a shared cache.
// Failures are logged and resolve to nil; they never fail a search.
type GeocodeResolver struct {
	geo      domain.Geocoder
	cache    domain.Cache
	emptyTTL int
}

// NewGeocodeResolver caches non-empty answers forever and empty ones for emptyTTLSec.
// geo may be nil, in which case only cached answers resolve.
func NewGeocodeResolver(geo domain.Geocoder, cache domain.Cache, emptyTTLSec int) *GeocodeResolver {
	return &GeocodeResolver{geo: geo, cache: cache, emptyTTL: emptyTTLSec}
}

func geocodeKey(place string) string { return "geocode:" + place }

func (r *GeocodeResolver) Resolve(ctx context.Context, place string) *domain.ResolvedPlace {
	if strings.TrimSpace(place) == "" {
		return nil
	}
	key := geocodeKey(place)
	var cands []domain.GeocodeCandidate
	if ok, _ := r.cache.Get(ctx, key, &cands); ok {
		return first(cands)
	}
	if r.geo == nil {
		return nil
	}

	cands, err := r.geo.Lookup(ctx, place)
	if err != nil {
		log.Warn().Err(err).Str("place", place).Msg("geocode lookup failed")
		return nil
	}
	ttl := 0
	if len(cands) == 0 {
		ttl = r.emptyTTL
	}
	if err := r.cache.Set(ctx, key, cands, ttl); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("geocode cache write failed")
	}
	return first(cands)
}

func first(cands []domain.GeocodeCandidate) *domain.ResolvedPlace {
	if len(cands) == 0 {
		return nil
	}
	c := cands[0]
	return &domain.ResolvedPlace{Lat: c.Lat, Lng: c.Lng, Name: c.FormattedAddress}
}
