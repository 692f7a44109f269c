package feeds

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"decfeeds/models"
)

// Format is a requested feed output format.
type Format string

const (
	FormatAtom Format = "atom"
	FormatRSS  Format = "rss"
	FormatJSON Format = "json"
)

// ParseFormat validates a type query parameter, defaulting to atom for
// the empty string.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "":
		return FormatAtom, true
	case "atom", "rss", "json":
		return Format(s), true
	}
	return "", false
}

// RenderFeed serializes a feed into the requested format, returning the
// document body and its content type.
func RenderFeed(feed *models.Feed, format Format) (string, string, error) {
	switch format {
	case FormatAtom:
		body, err := gorillaFeed(feed).ToAtom()
		return body, "application/atom+xml; charset=utf-8", err
	case FormatRSS:
		body, err := gorillaFeed(feed).ToRss()
		return body, "application/rss+xml; charset=utf-8", err
	case FormatJSON:
		body, err := jsonFeed(feed)
		return body, "application/json; charset=utf-8", err
	}
	return "", "", fmt.Errorf("invalid feed format %q", format)
}

func gorillaFeed(feed *models.Feed) *feeds.Feed {
	meta := feed.Metadata
	out := &feeds.Feed{
		Id:          meta.ID,
		Title:       meta.Title,
		Link:        &feeds.Link{Href: meta.Link},
		Description: meta.Description,
		Copyright:   meta.Copyright,
		Updated:     meta.Updated,
	}
	if meta.Author != nil {
		out.Author = &feeds.Author{Name: meta.Author.Name}
	}
	for _, item := range feed.Items {
		entry := &feeds.Item{
			Id:          item.Link,
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Description,
			Content:     item.Content,
			Created:     item.Date,
		}
		if item.Author != nil {
			entry.Author = &feeds.Author{Name: item.Author.Name}
		}
		if item.Image != "" {
			entry.Enclosure = &feeds.Enclosure{Url: item.Image, Type: "image/*", Length: "0"}
		}
		out.Items = append(out.Items, entry)
	}
	return out
}

// JSON Feed 1.1 document. Built directly instead of through
// gorilla/feeds, whose JSON writer has no place for item tags (the
// topic), per-item author links or the generator string.
type jsonFeedDoc struct {
	Version     string         `json:"version"`
	Title       string         `json:"title"`
	HomePageURL string         `json:"home_page_url,omitempty"`
	FeedURL     string         `json:"feed_url,omitempty"`
	Description string         `json:"description,omitempty"`
	Generator   string         `json:"generator,omitempty"`
	Authors     []jsonAuthor   `json:"authors,omitempty"`
	Items       []jsonFeedItem `json:"items"`
}

type jsonAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type jsonFeedItem struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	ContentHTML   string       `json:"content_html"`
	Summary       string       `json:"summary,omitempty"`
	Image         string       `json:"image,omitempty"`
	DatePublished time.Time    `json:"date_published"`
	Authors       []jsonAuthor `json:"authors,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
}

func jsonFeed(feed *models.Feed) (string, error) {
	meta := feed.Metadata
	doc := jsonFeedDoc{
		Version:     "https://jsonfeed.org/version/1.1",
		Title:       meta.Title,
		HomePageURL: meta.Link,
		FeedURL:     meta.Links.JSON,
		Description: meta.Description,
		Generator:   meta.Generator,
		Items:       []jsonFeedItem{},
	}
	if meta.Author != nil {
		doc.Authors = []jsonAuthor{{Name: meta.Author.Name, URL: meta.Author.Link}}
	}
	for _, item := range feed.Items {
		entry := jsonFeedItem{
			ID:            item.Link,
			URL:           item.Link,
			Title:         item.Title,
			ContentHTML:   item.Content,
			Summary:       item.Description,
			Image:         item.Image,
			DatePublished: item.Date,
		}
		if item.Author != nil {
			entry.Authors = []jsonAuthor{{Name: item.Author.Name, URL: item.Author.Link}}
		}
		if item.Topic != "" {
			entry.Tags = []string{item.Topic}
		}
		doc.Items = append(doc.Items, entry)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode json feed: %w", err)
	}
	return string(body), nil
}
