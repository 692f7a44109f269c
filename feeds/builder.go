// Package feeds assembles syndication feeds from Decentium content
// references. Per-reference resolution runs through a shared bounded
// work queue; individual failures are logged and dropped so one bad
// reference never takes down a whole feed.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"decfeeds/chain"
	"decfeeds/models"
	"decfeeds/queue"
	"decfeeds/version"
)

var (
	feedBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "decfeeds_feed_build_duration_seconds",
		Help:    "Duration of feed assembly by kind",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind"})

	itemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decfeeds_feed_items_dropped_total",
		Help: "The total number of references dropped after failed resolution",
	})
)

// ErrNotFound signals that the requested author has no blog. The HTTP
// boundary maps it to a different response than a timeout or an
// upstream failure.
var ErrNotFound = errors.New("blog not found")

const (
	blogPostLimit     = 500 // FUTURE: feed pagination
	trendingPostLimit = 50
)

var logger = log.WithField("module", "feeds")

// API is the chain read surface the builder depends on. Listings are
// returned already ordered, newest first for posts and by rank for
// trending; the builder preserves that order and never re-sorts.
type API interface {
	// GetBlog returns nil when the author has no blog.
	GetBlog(ctx context.Context, author string) (*models.Blog, error)
	GetPosts(ctx context.Context, author string, limit int) ([]models.PostRef, error)
	GetTrending(ctx context.Context, category string, limit int) ([]models.PostRef, error)
	ResolvePost(ctx context.Context, ref models.PostRef) (*models.Post, error)
	ResolveProfile(ctx context.Context, ref models.TxRef) (*models.Profile, error)
	GetProfile(ctx context.Context, author string) (*models.Profile, error)
}

// Builder assembles feeds. It holds no per-request state and is safe
// for concurrent use.
type Builder struct {
	api     API
	queue   *queue.Queue
	mainURL string
	feedURL string
}

// NewBuilder creates a Builder. The queue instance is shared across all
// requests so the concurrency cap bounds total upstream load.
func NewBuilder(api API, q *queue.Queue, mainURL, feedURL string) *Builder {
	return &Builder{
		api:     api,
		queue:   q,
		mainURL: mainURL,
		feedURL: feedURL,
	}
}

// resolveBatch runs one resolution task per reference through the queue
// and drops failures, preserving reference order.
func (b *Builder) resolveBatch(ctx context.Context, refs []models.PostRef, mode Mode) ([]*models.Item, error) {
	tasks := lo.Map(refs, func(ref models.PostRef, _ int) queue.Task[resolution] {
		return b.resolveTask(ref, mode)
	})
	results, err := queue.RunAll(ctx, b.queue, tasks)
	if err != nil {
		return nil, err
	}
	items := lo.FilterMap(results, func(r resolution, _ int) (*models.Item, bool) {
		return r.item, r.ok
	})
	itemsDropped.Add(float64(len(results) - len(items)))
	return items, nil
}

// updatedAt picks the feed's updated timestamp: the first (newest)
// item's date, or the epoch sentinel when nothing resolved. The
// sentinel keeps empty feeds cache-stable instead of stamping them with
// the current time.
func updatedAt(items []*models.Item) time.Time {
	if len(items) == 0 {
		return models.Epoch
	}
	return items[0].Date
}

// BuildBlogFeed assembles the feed of one author's blog. Returns
// ErrNotFound when the author has no blog; per-post failures only thin
// out the item list.
func (b *Builder) BuildBlogFeed(ctx context.Context, author string) (*models.Feed, error) {
	start := time.Now()
	defer func() {
		feedBuildDuration.WithLabelValues("blog").Observe(time.Since(start).Seconds())
	}()

	blog, err := b.api.GetBlog(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("get blog for %s: %w", author, err)
	}
	if blog == nil {
		return nil, ErrNotFound
	}

	// Profile enrichment is best-effort; the account name is a fine
	// display name when the profile cannot be resolved.
	var profile *models.Profile
	if blog.Profile != nil {
		profile, err = b.api.ResolveProfile(ctx, *blog.Profile)
		if err != nil {
			logger.WithFields(log.Fields{
				"author": author,
				"error":  err,
			}).Warn("Unable to resolve profile")
			profile = nil
		}
	}
	displayName := author
	if profile != nil && profile.Name != "" {
		displayName = profile.Name
	}

	refs, err := b.api.GetPosts(ctx, author, blogPostLimit)
	if err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", author, err)
	}

	items, err := b.resolveBatch(ctx, refs, BlogMode)
	if err != nil {
		return nil, err
	}

	authorURL := b.mainURL + "/" + author
	authorFeedURL := b.feedURL + "/" + author

	feed := &models.Feed{
		Metadata: models.FeedMetadata{
			ID:        authorURL,
			Link:      authorURL,
			Title:     displayName + " on Decentium",
			Copyright: "All rights reserved, " + displayName,
			Generator: version.Generator(),
			Updated:   updatedAt(items),
			Author: &models.FeedAuthor{
				Name: displayName,
				Link: authorURL,
			},
			Links: feedLinks(authorFeedURL),
		},
		Items: items,
	}
	if profile != nil {
		feed.Metadata.Description = profile.Bio
	}
	return feed, nil
}

// BuildTrendingFeed assembles the global or category-scoped trending
// feed. An empty listing yields an empty feed, not an error.
func (b *Builder) BuildTrendingFeed(ctx context.Context, category string) (*models.Feed, error) {
	start := time.Now()
	defer func() {
		feedBuildDuration.WithLabelValues("trending").Observe(time.Since(start).Seconds())
	}()

	refs, err := b.api.GetTrending(ctx, category, trendingPostLimit)
	if err != nil {
		return nil, fmt.Errorf("list trending: %w", err)
	}

	items, err := b.resolveBatch(ctx, refs, TrendingMode)
	if err != nil {
		return nil, err
	}

	topicPath := ""
	title := "Trending"
	if category != "" {
		topicPath = "/topic/" + category
		title = capitalize(category)
	}

	return &models.Feed{
		Metadata: models.FeedMetadata{
			ID:        b.mainURL + topicPath,
			Link:      b.mainURL + topicPath,
			Title:     title + " on Decentium",
			Copyright: "All rights reserved, respective authors.",
			Generator: version.Generator(),
			Updated:   updatedAt(items),
			Links:     feedLinks(b.feedURL + topicPath),
		},
		Items: items,
	}, nil
}

func feedLinks(base string) models.FeedLinks {
	return models.FeedLinks{
		Atom: base,
		RSS:  base + "?type=rss",
		JSON: base + "?type=json",
	}
}

// capitalize upper-cases the first byte and lower-cases the rest. The
// route charset restricts identifiers to ASCII so a byte-wise transform
// is enough.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	for i := 1; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// compile-time check that the chain client satisfies the API surface
var _ API = (*chain.Client)(nil)
