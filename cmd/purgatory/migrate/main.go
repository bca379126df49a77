package main

import (
	"log"
	"os"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
	"github.com/chainsafe/purgatory-reaper/pkg/migrations/purgatorydb"
	"github.com/chainsafe/purgatory-reaper/pkg/pgutil"
	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the purgatory database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to configuration file",
				Value:   "config.yaml",
				EnvVars: []string{"PURGATORY_CONFIG"},
			},
		},
	}
	for _, c := range []struct{ name, usage string }{
		{mghelper.CmdInit, "create migration tables"},
		{mghelper.CmdUp, "apply pending migrations"},
		{mghelper.CmdDown, "roll back the last migration group"},
		{mghelper.CmdStatus, "print migration status"},
	} {
		app.Commands = append(app.Commands, &cli.Command{
			Name:   c.name,
			Usage:  c.usage,
			Action: migrateAction(c.name),
		})
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateAction(command string) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.Logging, "migrate")
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cctx.Context
		db, err := pgutil.ConnectDB(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		return mghelper.Run(ctx, migrate.NewMigrator(db, purgatorydb.Migrations), logger, command)
	}
}
