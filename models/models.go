package models

import "time"

// Epoch is the "updated" timestamp for feeds that resolved zero items.
// A fixed sentinel keeps empty feeds byte-stable for HTTP caches instead
// of bumping the timestamp on every request.
var Epoch = time.Unix(0, 0).UTC()

// Permlink identifies a post by author account and slug.
type Permlink struct {
	Author string `json:"author"`
	Slug   string `json:"slug"`
}

// TxRef points at the transaction that carried an action on chain.
type TxRef struct {
	BlockNum      uint32 `json:"block_num"`
	TransactionID string `json:"transaction_id"`
}

// PostRef is a lightweight pointer to a post as returned by the listing
// tables. It is not yet resolved to full content.
type PostRef struct {
	Permlink  Permlink `json:"permlink"`
	Timestamp string   `json:"timestamp"`
	Category  string   `json:"category"`
	Tx        TxRef    `json:"ref"`
}

// PostMetadata holds the optional presentation metadata of a post action.
type PostMetadata struct {
	Summary string `json:"summary,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Post is a fully resolved post action.
type Post struct {
	Permlink Permlink      `json:"permlink"`
	Title    string        `json:"title"`
	Doc      Document      `json:"doc"`
	Metadata *PostMetadata `json:"metadata,omitempty"`
}

// Profile is a resolved profile action.
type Profile struct {
	Name  string `json:"name"`
	Bio   string `json:"bio,omitempty"`
	Image string `json:"image,omitempty"`
}

// Blog is a row in the contract's blogs table.
type Blog struct {
	Author  string `json:"author"`
	Profile *TxRef `json:"profile,omitempty"`
}

// ItemAuthor is the per-item author block used by trending feeds.
type ItemAuthor struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Item is one normalized feed entry.
type Item struct {
	Title       string      `json:"title"`
	Link        string      `json:"link"`
	Date        time.Time   `json:"date"`
	Content     string      `json:"content"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	Author      *ItemAuthor `json:"author,omitempty"`
	Topic       string      `json:"topic,omitempty"`
}

// FeedLinks holds the per-format self links of a feed.
type FeedLinks struct {
	Atom string `json:"atom"`
	RSS  string `json:"rss"`
	JSON string `json:"json"`
}

// FeedAuthor is the feed-level author block of a blog feed.
type FeedAuthor struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// FeedMetadata is derived once per request from profile data and the
// newest resolved item.
type FeedMetadata struct {
	ID          string      `json:"id"`
	Link        string      `json:"link"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Copyright   string      `json:"copyright"`
	Generator   string      `json:"generator"`
	Updated     time.Time   `json:"updated"`
	Author      *FeedAuthor `json:"author,omitempty"`
	Links       FeedLinks   `json:"feedLinks"`
}

// Feed is the output aggregate for one request. Items keep the order the
// listing call returned them in; the chain contract already orders
// listings by recency or trending rank.
type Feed struct {
	Metadata FeedMetadata `json:"metadata"`
	Items    []*Item      `json:"items"`
}

// Chain timestamps carry no zone suffix and are UTC by convention, with
// or without fractional seconds.
const (
	timestampLayout     = "2006-01-02T15:04:05"
	timestampLayoutFrac = "2006-01-02T15:04:05.000"
)

// ParseTimestamp parses a chain timestamp as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	if t, err := time.ParseInLocation(timestampLayoutFrac, ts, time.UTC); err == nil {
		return t, nil
	}
	return time.ParseInLocation(timestampLayout, ts, time.UTC)
}
