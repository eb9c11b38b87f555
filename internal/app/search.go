package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"freshlistings/internal/domain"
)

const MaxQueryLength = 1000

const (
	ReasonNoUnderstanding = "the query could not be understood"
	ReasonEngineDown      = "the search engine is unavailable"
	ReasonUpstream        = "query understanding is unavailable"
)

// SearchOutcome is a page of results plus what the query was understood as.
// Reason is set when the page is empty because something could not be done.
type SearchOutcome struct {
	Input  *domain.SearchInput
	Page   domain.SearchPage
	Reason string
}

type SearchService struct {
	decomposers map[domain.Strategy]Decomposer
	geocode     *GeocodeResolver
	index       domain.ListingIndex
	logs        domain.SearchLogRepository
	timeout     time.Duration
}

// NewSearchService wires the pipeline. logs may be nil; timeout <= 0 disables the pipeline deadline.
func NewSearchService(d map[domain.Strategy]Decomposer, g *GeocodeResolver, idx domain.ListingIndex, logs domain.SearchLogRepository, timeout time.Duration) *SearchService {
	return &SearchService{decomposers: d, geocode: g, index: idx, logs: logs, timeout: timeout}
}

// ValidateQuery rejects queries that must not reach any backend.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return fmt.Errorf("%w: query longer than %d characters", domain.ErrInvalidInput, MaxQueryLength)
	}
	return nil
}

func (s *SearchService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SearchService) Predict(ctx context.Context, q string, model domain.ModelID, strategy domain.Strategy) (domain.InferredFilters, error) {
	if err := ValidateQuery(q); err != nil {
		return domain.InferredFilters{}, err
	}
	d, ok := s.decomposers[strategy]
	if !ok {
		return domain.InferredFilters{}, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, strategy)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return d.Decompose(ctx, q, model)
}

// Understand decomposes q and resolves its place, if any, to coordinates.
func (s *SearchService) Understand(ctx context.Context, q string, model domain.ModelID, strategy domain.Strategy) (domain.SearchInput, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	f, err := s.Predict(ctx, q, model, strategy)
	if err != nil {
		return domain.SearchInput{}, err
	}
	in := domain.SearchInput{InferredFilters: f}
	if f.Place() == "" {
		return in, nil
	}
	if p := s.geocode.Resolve(ctx, *f.Location.Place); p != nil {
		in.Point = &domain.GeoPoint{Lat: p.Lat, Lng: p.Lng}
		name := p.Name
		in.FullAddress = &name
	}
	return in, nil
}

// Search runs the whole pipeline for one page. A query that cannot be understood is not an
// error: the outcome is empty and carries a reason. Engine failures return the outcome and an
// ErrUpstream-wrapped error.
func (s *SearchService) Search(ctx context.Context, q string, page int, model domain.ModelID, strategy domain.Strategy) (SearchOutcome, error) {
	if page < 0 || page > MaxPage {
		return SearchOutcome{}, fmt.Errorf("%w: page must be between 0 and %d", domain.ErrInvalidInput, MaxPage)
	}
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in, err := s.Understand(ctx, q, model, strategy)
	switch {
	case errors.Is(err, domain.ErrNoUnderstanding):
		out := SearchOutcome{Reason: ReasonNoUnderstanding}
		s.audit(ctx, q, model, strategy, out, time.Since(start))
		return out, nil
	case errors.Is(err, domain.ErrUpstream):
		out := SearchOutcome{Reason: ReasonUpstream}
		s.audit(ctx, q, model, strategy, out, time.Since(start))
		return out, err
	case err != nil:
		return SearchOutcome{}, err
	}

	pg, err := s.index.Search(ctx, CompileSearch(in, page))
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("listing search failed")
		out := SearchOutcome{Input: &in, Reason: ReasonEngineDown}
		s.audit(ctx, q, model, strategy, out, time.Since(start))
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return out, err
	}

	out := SearchOutcome{Input: &in, Page: pg}
	s.audit(ctx, q, model, strategy, out, time.Since(start))
	return out, nil
}

func (s *SearchService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Listing{}, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	return s.index.GetListing(ctx, id)
}

// audit writes a best-effort search log entry.
func (s *SearchService) audit(ctx context.Context, q string, model domain.ModelID, strategy domain.Strategy, out SearchOutcome, took time.Duration) {
	if s.logs == nil {
		return
	}
	e := domain.SearchLogEntry{
		Query:       q,
		Model:       string(model),
		Strategy:    string(strategy),
		ResultCount: out.Page.Total,
		ListingIDs:  make([]string, 0, len(out.Page.Listings)),
		TookMs:      took.Milliseconds(),
		Reason:      out.Reason,
	}
	if out.Input != nil {
		e.Filters, _ = json.Marshal(out.Input)
	}
	for _, l := range out.Page.Listings {
		e.ListingIDs = append(e.ListingIDs, l.ID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.logs.LogSearch(ctx, e); err != nil {
		log.Warn().Err(err).Msg("search log write failed")
	}
}
