package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"decfeeds/chain"
	"decfeeds/config"
	"decfeeds/feeds"
	"decfeeds/queue"
)

// commonFlags configure the chain connection and feed pipeline; both
// the serve and dump commands take them.
func commonFlags() []cli.Flag {
	defaults := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to a TOML config file",
			EnvVars: []string{"DECFEEDS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "node-url",
			Usage:   "EOSIO chain API endpoint",
			EnvVars: []string{"DECFEEDS_NODE_URL"},
			Value:   defaults.NodeURL,
		},
		&cli.StringFlag{
			Name:    "contract",
			Usage:   "Decentium contract account",
			EnvVars: []string{"DECFEEDS_CONTRACT"},
			Value:   defaults.Contract,
		},
		&cli.StringFlag{
			Name:    "main-url",
			Usage:   "Public site base URL used in feed links",
			EnvVars: []string{"DECFEEDS_MAIN_URL"},
			Value:   defaults.MainURL,
		},
		&cli.StringFlag{
			Name:    "feed-url",
			Usage:   "Public base URL of this feed service",
			EnvVars: []string{"DECFEEDS_FEED_URL"},
			Value:   defaults.FeedURL,
		},
		&cli.IntFlag{
			Name:    "fetch-concurrency",
			Usage:   "Maximum in-flight chain calls across all requests",
			EnvVars: []string{"DECFEEDS_FETCH_CONCURRENCY"},
			Value:   defaults.FetchConcurrency,
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Wall-clock budget for one feed's resolution batch",
			EnvVars: []string{"DECFEEDS_FETCH_TIMEOUT"},
			Value:   defaults.FetchTimeoutDuration(),
		},
		&cli.IntFlag{
			Name:    "block-cache-size",
			Usage:   "Number of chain blocks cached in memory",
			EnvVars: []string{"DECFEEDS_BLOCK_CACHE_SIZE"},
			Value:   defaults.BlockCacheSize,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn or error",
			EnvVars: []string{"DECFEEDS_LOG_LEVEL"},
			Value:   defaults.LogLevel,
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: text or json",
			EnvVars: []string{"DECFEEDS_LOG_FORMAT"},
			Value:   defaults.LogFormat,
		},
	}
}

// resolveConfig builds the effective configuration: defaults, then the
// config file if given, then any flags set on the command line or via
// environment.
func resolveConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if ctx.IsSet("node-url") {
		cfg.NodeURL = ctx.String("node-url")
	}
	if ctx.IsSet("contract") {
		cfg.Contract = ctx.String("contract")
	}
	if ctx.IsSet("main-url") {
		cfg.MainURL = ctx.String("main-url")
	}
	if ctx.IsSet("feed-url") {
		cfg.FeedURL = ctx.String("feed-url")
	}
	if ctx.IsSet("fetch-concurrency") {
		cfg.FetchConcurrency = ctx.Int("fetch-concurrency")
	}
	if ctx.IsSet("fetch-timeout") {
		cfg.SetFetchTimeout(ctx.Duration("fetch-timeout"))
	}
	if ctx.IsSet("block-cache-size") {
		cfg.BlockCacheSize = ctx.Int("block-cache-size")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("log-format") {
		cfg.LogFormat = ctx.String("log-format")
	}
	if ctx.IsSet("listen") {
		cfg.Listen = ctx.String("listen")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// newBuilder wires the chain client, the shared work queue and the feed
// builder from configuration.
func newBuilder(cfg *config.Config) (*feeds.Builder, error) {
	client, err := chain.New(chain.Options{
		NodeURL:        cfg.NodeURL,
		Contract:       cfg.Contract,
		BlockCacheSize: cfg.BlockCacheSize,
	})
	if err != nil {
		return nil, err
	}
	q := queue.New(cfg.FetchConcurrency, cfg.FetchTimeoutDuration())
	return feeds.NewBuilder(client, q, cfg.MainURL, cfg.FeedURL), nil
}
