package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chainsafe/purgatory-reaper/pkg/app"
	"github.com/chainsafe/purgatory-reaper/pkg/app/api"
	"github.com/chainsafe/purgatory-reaper/pkg/app/indexer"
	"github.com/chainsafe/purgatory-reaper/pkg/app/reaper"
	"github.com/chainsafe/purgatory-reaper/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "purgatory",
		Usage: "purgatory indexer, reaper and query API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to configuration file",
				Value:   "config.yaml",
				EnvVars: []string{"PURGATORY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "indexer",
				Usage: "follow purgatory events and keep the database in sync",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "backfill", Usage: "replay history from the first ledger event and exit"},
					&cli.BoolFlag{Name: "restart", Usage: "with --backfill, discard the saved backfill position"},
				},
				Action: run(func(cctx *cli.Context, cfg *config.Config) app.Runner {
					mode := indexer.ModeLive
					if cctx.Bool("backfill") {
						mode = indexer.ModeBackfill
					}
					return indexer.NewServer(cfg, mode, cctx.Bool("restart"))
				}),
			},
			{
				Name:  "reaper",
				Usage: "purge expired holdings on the configured interval",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "once", Usage: "run a single pass and exit"},
				},
				Action: run(func(cctx *cli.Context, cfg *config.Config) app.Runner {
					mode := reaper.ModeSchedule
					if cctx.Bool("once") {
						mode = reaper.ModeOnce
					}
					return reaper.NewServer(cfg, mode)
				}),
			},
			{
				Name:  "balance",
				Usage: "print the reaper wallet balance",
				Action: run(func(_ *cli.Context, cfg *config.Config) app.Runner {
					return reaper.NewServer(cfg, reaper.ModeBalance)
				}),
			},
			{
				Name:  "serve",
				Usage: "serve the read-only query API",
				Action: run(func(_ *cli.Context, cfg *config.Config) app.Runner {
					return api.NewServer(cfg)
				}),
			},
		},
	}
}

func run(build func(cctx *cli.Context, cfg *config.Config) app.Runner) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return build(cctx, cfg).Run()
	}
}
