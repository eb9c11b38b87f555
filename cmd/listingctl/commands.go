package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"freshlistings/internal/adapters/observability"
	"freshlistings/internal/app"
	"freshlistings/internal/bootstrap"
	"freshlistings/internal/domain"
	"freshlistings/internal/shared"
)

func setupLogger(c *cli.Context) error {
	log.Logger = observability.NewLogger("dev", c.String("log-level")).
		Output(zerolog.ConsoleWriter{Out: c.App.ErrWriter, TimeFormat: time.Kitchen})
	return nil
}

// withApp loads configuration, builds the services and closes them after fn.
func withApp(c *cli.Context, fn func(ctx context.Context, a *bootstrap.App) error) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, shared.Load())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()
	return fn(ctx, a)
}

// queryArgs joins the positional arguments into one query.
func queryArgs(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if err := app.ValidateQuery(q); err != nil {
		return "", err
	}
	return q, nil
}

// modelAndStrategy resolves the --model and --strategy flags against the registry.
func modelAndStrategy(c *cli.Context, a *bootstrap.App) (domain.ModelID, domain.Strategy, error) {
	m := domain.ModelID(c.String("model"))
	if m == "" {
		m = a.Models.Default()
	}
	if !a.Models.Has(m) {
		return "", "", fmt.Errorf("%w %q (available: %v)", domain.ErrUnknownModel, m, a.Models.IDs())
	}
	st, ok := domain.ParseStrategy(c.String("strategy"))
	if !ok {
		return "", "", fmt.Errorf("%w: strategy must be two-shot or single-shot", domain.ErrInvalidInput)
	}
	return m, st, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func predictCommand(c *cli.Context) error {
	q, err := queryArgs(c)
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, a *bootstrap.App) error {
		m, st, err := modelAndStrategy(c, a)
		if err != nil {
			return err
		}
		in, err := a.Search.Understand(ctx, q, m, st)
		if errors.Is(err, domain.ErrNoUnderstanding) {
			_, werr := fmt.Fprintln(c.App.Writer, app.ReasonNoUnderstanding)
			return werr
		}
		if err != nil {
			return err
		}
		return printJSON(c, in)
	})
}

func searchCommand(c *cli.Context) error {
	q, err := queryArgs(c)
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, a *bootstrap.App) error {
		m, st, err := modelAndStrategy(c, a)
		if err != nil {
			return err
		}
		out, err := a.Search.Search(ctx, q, c.Int("page"), m, st)
		if err != nil && out.Reason == "" {
			return err
		}
		writeOutcome(c, out)
		return err
	})
}

func writeOutcome(c *cli.Context, out app.SearchOutcome) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if out.Reason != "" {
		fmt.Fprintf(w, "no results: %s\n", out.Reason)
		return
	}
	if in := out.Input; in != nil && in.FullAddress != nil {
		fmt.Fprintf(w, "near:\t%s\n", *in.FullAddress)
	}
	fmt.Fprintf(w, "matches:\t%d (%dms)\n\n", out.Page.Total, out.Page.Took.Milliseconds())
	fmt.Fprintln(w, "ID\tBEDS\tBATHS\tNAME")
	for _, l := range out.Page.Listings {
		fmt.Fprintf(w, "%s\t%d\t%g\t%s\n", l.ID, l.Bedrooms, l.Bathrooms, l.Name)
	}
}

func tilesCommand(c *cli.Context) error {
	tl, err := domain.ParseGeoPoint(c.String("top-left"))
	if err != nil {
		return err
	}
	br, err := domain.ParseGeoPoint(c.String("bottom-right"))
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, a *bootstrap.App) error {
		tiles, err := a.Tiles.Tiles(ctx, app.TileQuery{TopLeft: tl, BottomRight: br, Zoom: c.Int("zoom"), Keyword: c.String("keywords")})
		if err != nil {
			return err
		}
		return printJSON(c, map[string]any{"tiles": tiles})
	})
}

func warmGeocodeCommand(c *cli.Context) error {
	places := c.Args().Slice()
	if f := c.String("file"); f != "" {
		fromFile, err := readPlacesFile(f)
		if err != nil {
			return err
		}
		places = append(places, fromFile...)
	}
	places = dedupePlaces(places)
	if len(places) == 0 {
		return fmt.Errorf("%w: no places given; pass them as arguments or with --file", domain.ErrInvalidInput)
	}

	return withApp(c, func(ctx context.Context, a *bootstrap.App) error {
		workers := c.Int("workers")
		if workers <= 0 {
			workers = a.Config.WarmWorkers
		}
		log.Info().Int("places", len(places)).Int("workers", workers).Msg("warming geocode cache")
		st, err := warmPlaces(ctx, a.Geocode, places, workers)
		fmt.Fprintf(c.App.Writer, "resolved %d, unresolved %d of %d places\n", st.Resolved, st.Unresolved, len(places))
		return err
	})
}

func historyCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *bootstrap.App) error {
		if a.Logs == nil {
			return errors.New("search log is not configured; set SEARCH_LOG_DSN")
		}
		entries, err := a.Logs.Recent(ctx, c.Int("limit"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "WHEN\tMODEL\tSTRATEGY\tRESULTS\tTOOK\tQUERY")
		for _, e := range entries {
			results := fmt.Sprint(e.ResultCount)
			if e.Reason != "" {
				results = "- (" + e.Reason + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Model, e.Strategy, results, e.TookMs, e.Query)
		}
		return nil
	})
}
