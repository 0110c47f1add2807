package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"quotedesk/go_backend/internal/app"
	"quotedesk/go_backend/internal/app/config"
	"quotedesk/go_backend/internal/infra/db/postgres"
)

func main() {
	cliApp := &cli.App{
		Name:  "ledger",
		Usage: "quotation ledger service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "create the serial reservation table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
				},
				Action: migrate,
			},
			{
				Name:   "list",
				Usage:  "print aggregated quotations as JSON",
				Action: list,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("ledger")
	}
}

func build(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return app.Build(c.Context, cfg, log)
}

func serve(c *cli.Context) error {
	a, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(c.Context)
}

func migrate(c *cli.Context) error {
	db, err := postgres.New(c.Context, c.String("database-url"))
	if err != nil {
		return errors.Wrap(err, "db")
	}
	defer db.Close()

	serials := postgres.NewSerials(db.Pool)
	if err := serials.EnsureSchema(c.Context); err != nil {
		return err
	}
	n, err := serials.Count(c.Context)
	if err != nil {
		return err
	}
	logrus.WithField("reserved", n).Info("migrate: serial_reservations ready")
	return nil
}

func list(c *cli.Context) error {
	a, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()

	qs, err := a.Ledger.ListQuotations(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(qs)
}
