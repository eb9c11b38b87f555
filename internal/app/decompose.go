package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"freshlistings/internal/adapters/llm"
	"freshlistings/internal/adapters/observability"
	"freshlistings/internal/domain"
)

// Decomposer turns a free-text query into filters.
type Decomposer interface {
	Decompose(ctx context.Context, query string, model domain.ModelID) (domain.InferredFilters, error)
}

// NewDecomposers returns every strategy keyed by name.
func NewDecomposers(c llm.Completer) map[domain.Strategy]Decomposer {
	return map[domain.Strategy]Decomposer{
		domain.StrategyTwoShot:    NewTwoShot(c),
		domain.StrategySingleShot: NewSingleShot(c),
	}
}

// SingleShot asks for all filters in one extraction.
type SingleShot struct{ llm llm.Completer }

func NewSingleShot(c llm.Completer) *SingleShot { return &SingleShot{llm: c} }

func (d *SingleShot) Decompose(ctx context.Context, query string, model domain.ModelID) (domain.InferredFilters, error) {
	res, err := llm.Extract(ctx, d.llm, llm.FiltersSchema, filtersSystem, query, model)
	if err != nil {
		observability.ObserveStage(string(domain.StrategySingleShot), "filters", "failed")
		return domain.InferredFilters{}, err
	}
	if res.Parsed == nil {
		observability.ObserveStage(string(domain.StrategySingleShot), "filters", "failed")
		return domain.InferredFilters{}, fmt.Errorf("%w: filters output did not match schema", domain.ErrNoUnderstanding)
	}
	observability.ObserveStage(string(domain.StrategySingleShot), "filters", "ok")

	p := res.Parsed
	out := domain.InferredFilters{
		NumBeds:      nonEmpty(p.NumBeds),
		NumBathrooms: nonEmpty(p.NumBathrooms),
		Price:        nonEmpty(p.Price),
		Location:     locationOrNil(p.Location),
		Keywords:     cleanKeywords(p.Keywords),
	}
	if in, ok := domain.ParseIntention(p.Intention); ok {
		out.Intention = &in
	}
	return out, nil
}

// TwoShot classifies key terms first, then extracts each field from its own terms.
// Stages: classify, then location and one range stage per numeric category in parallel, then merge.
type TwoShot struct{ llm llm.Completer }

func NewTwoShot(c llm.Completer) *TwoShot { return &TwoShot{llm: c} }

var rangeCategories = []domain.TermCategory{domain.CategoryBedroom, domain.CategoryBathroom, domain.CategoryPrice}

func (d *TwoShot) Decompose(ctx context.Context, query string, model domain.ModelID) (domain.InferredFilters, error) {
	terms, err := d.classify(ctx, query, model)
	if err != nil {
		return domain.InferredFilters{}, err
	}

	var (
		g        errgroup.Group
		location *domain.LocationFilter
		ranges   = make([]*domain.MinMaxRange, len(rangeCategories))
	)
	if t, ok := firstOf(terms, domain.CategoryLocation); ok {
		g.Go(func() error {
			location = d.location(ctx, t, model)
			return nil
		})
	}
	for i, cat := range rangeCategories {
		group := termsOf(terms, cat)
		if len(group) == 0 {
			continue
		}
		g.Go(func() error {
			ranges[i] = d.rangeOf(ctx, cat, group, model)
			return nil
		})
	}
	_ = g.Wait()

	out := domain.InferredFilters{
		NumBeds:      ranges[0],
		NumBathrooms: ranges[1],
		Price:        ranges[2],
		Location:     location,
		Keywords:     []string{},
	}
	for _, t := range terms {
		if t.Category == domain.CategoryOther {
			out.Keywords = append(out.Keywords, t.Term)
		}
	}
	return out, nil
}

func (d *TwoShot) classify(ctx context.Context, query string, model domain.ModelID) ([]domain.KeyTerm, error) {
	res, err := llm.Extract(ctx, d.llm, llm.ClassifySchema, classifySystem, query, model)
	if err != nil {
		observability.ObserveStage(string(domain.StrategyTwoShot), "classify", "failed")
		return nil, err
	}
	if res.Parsed == nil {
		observability.ObserveStage(string(domain.StrategyTwoShot), "classify", "failed")
		return nil, fmt.Errorf("%w: classification output did not match schema", domain.ErrNoUnderstanding)
	}
	observability.ObserveStage(string(domain.StrategyTwoShot), "classify", "ok")
	return res.Parsed.KeyTerms, nil
}

func (d *TwoShot) location(ctx context.Context, t domain.KeyTerm, model domain.ModelID) *domain.LocationFilter {
	res, err := llm.Extract(ctx, d.llm, llm.LocationSchema, locationSystem, t.Text(), model)
	loc := stageResult(res, err, "location")
	if loc == nil {
		return nil
	}
	return locationOrNil(loc)
}

func (d *TwoShot) rangeOf(ctx context.Context, cat domain.TermCategory, terms []domain.KeyTerm, model domain.ModelID) *domain.MinMaxRange {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if s := t.Text(); s != "" {
			parts = append(parts, s)
		}
	}
	user := fmt.Sprintf("%s range request: %s", cat, strings.Join(parts, " "))

	res, err := llm.Extract(ctx, d.llm, llm.RangeSchema, rangeSystem, user, model)
	r := nonEmpty(stageResult(res, err, string(cat)))
	if r == nil {
		return nil
	}
	if cat != domain.CategoryPrice && isExactCount(terms) {
		r = exact(r)
	}
	return r
}

func stageResult[T any](res llm.Result[T], err error, stage string) *T {
	strategy := string(domain.StrategyTwoShot)
	switch {
	case err != nil:
		observability.ObserveStage(strategy, stage, "failed")
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("stage", stage).Msg("decomposition stage failed, field omitted")
		}
		return nil
	case res.Parsed == nil:
		observability.ObserveStage(strategy, stage, "failed")
		return nil
	default:
		observability.ObserveStage(strategy, stage, "ok")
		return res.Parsed
	}
}

var comparatives = []string{"under", "over", "below", "above", "least", "most", "more", "less", "up to", "upto", "min", "max", "between", "around", "about", "plus", "or so", "to"}

// isExactCount reports whether terms state a bare count, e.g. "2 bedroom" or "with 2 bedrooms".
// Only comparative wording in the descriptor or the term keeps the range open.
func isExactCount(terms []domain.KeyTerm) bool {
	for _, t := range terms {
		text := " " + strings.Join(strings.Fields(strings.ToLower(t.Descriptor+" "+t.Term)), " ") + " "
		if strings.Contains(text, "+") {
			return false
		}
		for _, c := range comparatives {
			if strings.Contains(text, " "+c+" ") {
				return false
			}
		}
	}
	return true
}

// exact mirrors a lone bound onto the other side.
func exact(r *domain.MinMaxRange) *domain.MinMaxRange {
	switch {
	case r.Min != nil && r.Max == nil:
		v := *r.Min
		return &domain.MinMaxRange{Min: &v, Max: &v}
	case r.Max != nil && r.Min == nil:
		v := *r.Max
		return &domain.MinMaxRange{Min: &v, Max: &v}
	}
	return r
}

func nonEmpty(r *domain.MinMaxRange) *domain.MinMaxRange {
	if r.Empty() {
		return nil
	}
	return r
}

func locationOrNil(l *domain.LocationFilter) *domain.LocationFilter {
	if l == nil {
		return nil
	}
	if l.Place != nil && strings.TrimSpace(*l.Place) == "" {
		l.Place = nil
	}
	if l.Place == nil && l.Distance == nil {
		return nil
	}
	return l
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func firstOf(terms []domain.KeyTerm, cat domain.TermCategory) (domain.KeyTerm, bool) {
	for _, t := range terms {
		if t.Category == cat {
			return t, true
		}
	}
	return domain.KeyTerm{}, false
}

func termsOf(terms []domain.KeyTerm, cat domain.TermCategory) []domain.KeyTerm {
	var out []domain.KeyTerm
	for _, t := range terms {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}
