package feeds

import (
	"context"

	log "github.com/sirupsen/logrus"

	"decfeeds/chain"
	"decfeeds/models"
	"decfeeds/queue"
	"decfeeds/render"
)

// Mode selects which mode-specific fields a resolved item carries.
type Mode int

const (
	// BlogMode attaches the reference's category as a topic tag.
	BlogMode Mode = iota
	// TrendingMode attaches an author block with the resolved or
	// fallback display name.
	TrendingMode
)

// resolution is the outcome of one resolution task. ok distinguishes a
// failed task from a resolved item that merely has empty optional
// fields; tasks never return errors.
type resolution struct {
	item *models.Item
	ok   bool
}

var failed = resolution{}

// resolveTask builds the queue task that resolves one reference. Every
// failure path logs a warning and yields the failed resolution; nothing
// escapes the task, so sibling references are unaffected.
func (b *Builder) resolveTask(ref models.PostRef, mode Mode) queue.Task[resolution] {
	return func(ctx context.Context) resolution {
		refLogger := logger.WithFields(log.Fields{
			"author": ref.Permlink.Author,
			"slug":   ref.Permlink.Slug,
		})
		refLogger.Debug("Render post")

		post, err := b.api.ResolvePost(ctx, ref)
		if err != nil {
			refLogger.WithField("error", err).Warn("Unable to resolve post")
			return failed
		}

		content, err := render.Document(post.Doc)
		if err != nil {
			refLogger.WithField("error", err).Warn("Unable to render post document")
			return failed
		}

		date, err := models.ParseTimestamp(ref.Timestamp)
		if err != nil {
			refLogger.WithField("error", err).Warn("Malformed reference timestamp")
			return failed
		}

		item := &models.Item{
			Title:   post.Title,
			Link:    b.mainURL + "/" + chain.EncodePermlink(ref.Permlink),
			Date:    date,
			Content: content,
		}
		if post.Metadata != nil {
			item.Description = post.Metadata.Summary
			item.Image = post.Metadata.Image
		}

		switch mode {
		case BlogMode:
			item.Topic = ref.Category
		case TrendingMode:
			// Best-effort enrichment: a missing profile degrades the
			// display name, not the item.
			name := ref.Permlink.Author
			profile, err := b.api.GetProfile(ctx, ref.Permlink.Author)
			if err != nil {
				refLogger.WithField("error", err).Warn("Unable to resolve author profile")
			} else if profile.Name != "" {
				name = profile.Name
			}
			item.Author = &models.ItemAuthor{
				Name: name,
				Link: b.mainURL + "/" + ref.Permlink.Author,
			}
		}

		return resolution{item: item, ok: true}
	}
}
