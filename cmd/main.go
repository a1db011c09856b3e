package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradesim/cmd/normalize"
	"tradesim/cmd/serve"
	"tradesim/src/normalizer"
	"tradesim/src/utils"
)

var Version string

func main() {
	utils.SetupLogger(utils.GetLogConfig())

	app := cli.NewApp()
	app.Name = "tradesim"
	app.Usage = "Order normalization and trigger evaluation for the trading simulator"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		normalizeCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API, the trigger engine and the tick feed",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the service until SIGINT or SIGTERM`,
	}
	normalizeCMD = cli.Command{
		Name:      "normalize",
		Usage:     "normalize raw orders read from stdin",
		Action:    normalizeAction,
		ArgsUsage: "< orders.json",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "ltp",
				Usage: "last traded price used for the LIMIT to STOP_LIMIT upgrade",
			},
			cli.StringFlag{
				Name:  "tick-size",
				Usage: "price tick size (defaults to TICK_SIZE)",
			},
		},
		Description: `Read one raw order or an array of them as JSON and print the canonical orders`,
	}
)

func serveAction(_ *cli.Context) error {
	logrus.WithField("cmd", "serve").Info("Starting serve CMD")

	s := &serve.Serve{}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("serve stopped with error")
		return err
	}
	return nil
}

func normalizeAction(c *cli.Context) error {
	var ltp decimal.NullDecimal
	if raw := c.String("ltp"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid --ltp %q: %w", raw, err)
		}
		ltp = decimal.NewNullDecimal(d)
	}

	tickSize := normalizer.GetConfig().TickSizeDecimal()
	if raw := c.String("tick-size"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("invalid --tick-size %q", raw)
		}
		tickSize = d
	}

	return normalize.Run(os.Stdin, os.Stdout, ltp, tickSize)
}
