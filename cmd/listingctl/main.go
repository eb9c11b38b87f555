package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("listingctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "listingctl",
		Usage: "Operate the listing search pipeline from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "predict",
				Usage:     "Show how a query is understood",
				ArgsUsage: "<query>",
				Action:    predictCommand,
				Flags:     []cli.Flag{modelFlag(), strategyFlag()},
			},
			{
				Name:      "search",
				Usage:     "Run a query end to end and print the matching listings",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					modelFlag(),
					strategyFlag(),
					&cli.IntFlag{
						Name:    "page",
						Aliases: []string{"p"},
						Usage:   "Zero-based result page",
					},
				},
			},
			{
				Name:   "tiles",
				Usage:  "Aggregate keyword matches into hex tiles for a viewport",
				Action: tilesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "top-left", Usage: "lat,lng of the top-left corner", Required: true},
					&cli.StringFlag{Name: "bottom-right", Usage: "lat,lng of the bottom-right corner", Required: true},
					&cli.IntFlag{Name: "zoom", Usage: "Map zoom level (0-22)", Value: 12},
					&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "Keywords to count", Required: true},
				},
			},
			{
				Name:      "warm-geocode",
				Usage:     "Resolve a list of places into the shared geocode cache",
				ArgsUsage: "[place...]",
				Action:    warmGeocodeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "File with one place per line; # starts a comment",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Concurrent lookups (defaults to WARM_WORKERS)",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Print recent searches from the search log",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of entries", Value: 20},
				},
			},
		},
	}
}

func modelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   "Extraction model id (defaults to DEFAULT_MODEL)",
	}
}

func strategyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "strategy",
		Aliases: []string{"s"},
		Usage:   "Decomposition strategy: two-shot or single-shot",
		Value:   "two-shot",
	}
}
