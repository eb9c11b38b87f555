package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"freshlistings/internal/domain"
)

type placeResolver interface {
	Resolve(ctx context.Context, place string) *domain.ResolvedPlace
}

type warmStats struct {
	Resolved   int64
	Unresolved int64
}

// warmPlaces resolves every place with at most workers lookups in flight.
// It stops launching new lookups once ctx is done and returns ctx's error.
func warmPlaces(ctx context.Context, r placeResolver, places []string, workers int) (warmStats, error) {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg    sync.WaitGroup
		stats warmStats
		err   error
	)

	for _, place := range places {
		// acquire before launching the goroutine; release inside it
		if err = sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(place string) {
			defer wg.Done()
			defer sem.Release(1)

			if p := r.Resolve(ctx, place); p != nil {
				atomic.AddInt64(&stats.Resolved, 1)
				log.Debug().Str("place", place).Str("address", p.Name).Msg("resolved")
				return
			}
			atomic.AddInt64(&stats.Unresolved, 1)
			log.Info().Str("place", place).Msg("no match")
		}(place)
	}

	wg.Wait()
	return stats, err
}

func readPlacesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// dedupePlaces trims places and drops blanks and repeats, keeping first-seen order.
// Cache keys use the raw text, so case is preserved.
func dedupePlaces(places []string) []string {
	seen := make(map[string]struct{}, len(places))
	out := make([]string, 0, len(places))
	for _, p := range places {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
