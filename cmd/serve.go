package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"decfeeds/server"
	"decfeeds/version"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the decentium feeds",
		Description: `Starts the feed HTTP server.

GET / and GET /topic/<category> serve the trending feed, GET /<author>
serves an author's blog feed. The type query parameter selects the
output format: atom (default), rss or json.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address to bind the HTTP server to",
				EnvVars: []string{"DECFEEDS_LISTEN"},
				Value:   ":8080",
			},
		}, commonFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := resolveConfig(ctx)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			log.WithFields(log.Fields{
				"version":  version.Version,
				"node":     cfg.NodeURL,
				"contract": cfg.Contract,
			}).Info("Starting decfeeds")

			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{Builder: builder})

			g, gctx := errgroup.WithContext(ctx.Context)

			g.Go(func() error {
				log.WithField("listen", cfg.Listen).Info("Starting server")
				return app.Listen(cfg.Listen)
			})

			g.Go(func() error {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

				select {
				case sig := <-quit:
					log.WithField("signal", sig.String()).Info("Gracefully shutting down")
				case <-gctx.Done():
				}
				return app.ShutdownWithTimeout(30 * time.Second)
			})

			return g.Wait()
		},
	}
}
