package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"decfeeds/feeds"
	"decfeeds/models"
)

func dumpCmd() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Render a feed to stdout",
		ArgsUsage: "[author]",
		Description: `Builds one feed and prints the serialized document to stdout.

With an author argument the author's blog feed is rendered; without one
the trending feed is rendered, optionally scoped with --category.

Prints all log messages to stderr so the output can be piped to a file
or another tool.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "category",
				Usage: "Trending category (ignored when an author is given)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Output format: atom, rss or json",
				Value: "atom",
			},
		}, commonFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := resolveConfig(ctx)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			// Keep stdout clean for the feed document
			log.SetOutput(os.Stderr)

			format, ok := feeds.ParseFormat(ctx.String("type"))
			if !ok {
				return fmt.Errorf("invalid feed type %q", ctx.String("type"))
			}

			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}

			var feed *models.Feed
			if author := ctx.Args().First(); author != "" {
				feed, err = builder.BuildBlogFeed(ctx.Context, author)
			} else {
				feed, err = builder.BuildTrendingFeed(ctx.Context, ctx.String("category"))
			}
			if err != nil {
				return err
			}

			body, _, err := feeds.RenderFeed(feed, format)
			if err != nil {
				return err
			}
			fmt.Println(body)
			return nil
		},
	}
}
