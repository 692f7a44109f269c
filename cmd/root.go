package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "decfeeds",
		Usage: "Syndication feeds for Decentium blogs",
		Description: `Serves Atom, RSS and JSON feeds for content published through
		the Decentium contract. Post bodies live on chain; the service
		resolves them through an EOSIO node and assembles per-author and
		trending feeds on demand.

		Flags can generally be set via environment variables, e.g.:

		--listen => DECFEEDS_LISTEN=:8080
		--node-url => DECFEEDS_NODE_URL=https://eos.greymass.com
		`,
		Commands: []*cli.Command{
			serveCmd(),
			dumpCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.WithField("error", err).Fatal("Unable to run application")
	}
}
