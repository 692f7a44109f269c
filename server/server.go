package server

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"decfeeds/feeds"
	"decfeeds/models"
	"decfeeds/queue"
)

// Downstream caches may serve stale feeds for a while when the chain
// node is down; feed readers poll anyway.
const cacheControl = "public, max-age=60, stale-while-revalidate=600, stale-if-error=86400"

// Chain account names: lowercase letters, digits 1-5 and dots, at most
// 13 characters. Anything else is a client error and never reaches the
// feed builder.
var namePattern = regexp.MustCompile(`^[a-z1-5.]{1,13}$`)

// FeedBuilder is the assembly surface the HTTP layer needs.
type FeedBuilder interface {
	BuildBlogFeed(ctx context.Context, author string) (*models.Feed, error)
	BuildTrendingFeed(ctx context.Context, category string) (*models.Feed, error)
}

type ServerConfig struct {

	// Builder assembles feeds for incoming requests
	Builder FeedBuilder
}

// Returns a fiber.App instance to be used as an HTTP server for the
// decentium feeds
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		// Diff
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Setup cache
	app.Use(cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != "GET" {
				return true
			}
			// Operational endpoints are never cached
			if c.Path() == "/metrics" || c.Path() == "/healthz" {
				return true
			}
			return false
		},
		Expiration: 60 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Get URL with query string to use as cache key
			url := c.Request().URI().String()
			// Include the query parameters in the cache key
			return url
		},
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		return trendingFeed(c, config.Builder, "")
	})

	app.Get("/topic/:category", func(c *fiber.Ctx) error {
		category := c.Params("category")
		if !namePattern.MatchString(category) {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid category")
		}
		return trendingFeed(c, config.Builder, category)
	})

	app.Get("/:author", func(c *fiber.Ctx) error {
		author := c.Params("author")
		if !namePattern.MatchString(author) {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid author")
		}

		format, ok := feeds.ParseFormat(c.Query("type"))
		if !ok {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid feed type")
		}

		log.WithField("author", author).Debug("Rendering blog feed")
		feed, err := config.Builder.BuildBlogFeed(c.Context(), author)
		if err != nil {
			return feedError(c, err)
		}
		return writeFeed(c, feed, format)
	})

	return app
}

func trendingFeed(c *fiber.Ctx, builder FeedBuilder, category string) error {
	format, ok := feeds.ParseFormat(c.Query("type"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid feed type")
	}

	log.WithField("category", category).Debug("Rendering trending feed")
	feed, err := builder.BuildTrendingFeed(c.Context(), category)
	if err != nil {
		return feedError(c, err)
	}
	return writeFeed(c, feed, format)
}

// feedError maps builder failures to responses without leaking internal
// detail. Not-found, timeout and upstream failure must stay
// distinguishable to clients.
func feedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, feeds.ErrNotFound):
		return c.Status(fiber.StatusNotFound).SendString("No such blog")
	case errors.Is(err, queue.ErrBatchTimeout):
		log.WithField("error", err).Warn("Feed build timed out")
		return c.Status(fiber.StatusServiceUnavailable).SendString("Upstream timeout")
	default:
		log.WithField("error", err).Error("Error building feed")
		return c.Status(fiber.StatusInternalServerError).SendString("Error building feed")
	}
}

func writeFeed(c *fiber.Ctx, feed *models.Feed, format feeds.Format) error {
	body, contentType, err := feeds.RenderFeed(feed, format)
	if err != nil {
		log.WithField("error", err).Error("Error serializing feed")
		return c.Status(fiber.StatusInternalServerError).SendString("Error serializing feed")
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, cacheControl)
	return c.SendString(body)
}
