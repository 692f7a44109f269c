// Package chain reads Decentium content from an EOSIO node. Posts and
// profiles live as actions in past blocks; the contract's tables only
// hold lightweight references to them, so resolution means fetching the
// referenced block and decoding the action payload.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"decfeeds/models"
)

// Add Prometheus metrics
var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decfeeds_chain_rpc_requests_total",
		Help: "The total number of chain RPC requests by endpoint",
	}, []string{"endpoint"})

	rpcErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decfeeds_chain_rpc_errors_total",
		Help: "The total number of failed chain RPC requests by endpoint",
	}, []string{"endpoint"})

	rpcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decfeeds_chain_rpc_duration_seconds",
		Help:    "Duration of chain RPC requests including retries",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // Start at 5ms, double each bucket, 12 buckets
	})

	blockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decfeeds_chain_block_cache_hits_total",
		Help: "The total number of block fetches served from the LRU cache",
	})

	blockCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decfeeds_chain_block_cache_misses_total",
		Help: "The total number of block fetches that hit the node",
	})
)

const (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	retryMaxElapsed      = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// NodeURL is the HTTP endpoint of the EOSIO node, e.g.
	// https://eos.greymass.com
	NodeURL string

	// Contract is the Decentium contract account.
	Contract string

	// BlockCacheSize is the number of resolved blocks kept in memory.
	BlockCacheSize int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is a read-only Decentium chain API client. It is safe for
// concurrent use; nothing on it mutates shared state after construction.
type Client struct {
	node     string
	contract string
	http     *http.Client
	blocks   *lru.Cache[uint32, *signedBlock]
	logger   *log.Entry
}

// New creates a chain client.
func New(opts Options) (*Client, error) {
	if opts.NodeURL == "" {
		return nil, fmt.Errorf("chain: node URL is required")
	}
	if opts.Contract == "" {
		return nil, fmt.Errorf("chain: contract account is required")
	}
	size := opts.BlockCacheSize
	if size < 1 {
		size = 100
	}
	blocks, err := lru.New[uint32, *signedBlock](size)
	if err != nil {
		return nil, fmt.Errorf("chain: block cache: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		node:     strings.TrimSuffix(opts.NodeURL, "/"),
		contract: opts.Contract,
		http:     httpClient,
		blocks:   blocks,
		logger:   log.WithField("module", "chain"),
	}, nil
}

// call POSTs a JSON request to a chain API endpoint with retry on
// transport errors and node-side failures. Client errors and decode
// errors are permanent.
func (c *Client) call(ctx context.Context, endpoint string, params interface{}, result interface{}) error {
	rpcRequests.WithLabelValues(endpoint).Inc()
	start := time.Now()
	defer func() {
		rpcDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", endpoint, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = retryMaxElapsed

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.node+endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("node returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("node returned %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", endpoint, err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		rpcErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) getTableRows(ctx context.Context, req getTableRowsRequest) (*getTableRowsResult, error) {
	req.Code = c.contract
	req.JSON = true
	var result getTableRowsResult
	if err := c.call(ctx, "/v1/chain/get_table_rows", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBlog looks up the author's row in the blogs table. Returns nil
// without error when the author has no blog.
func (c *Client) GetBlog(ctx context.Context, author string) (*models.Blog, error) {
	result, err := c.getTableRows(ctx, getTableRowsRequest{
		Scope:      c.contract,
		Table:      "blogs",
		LowerBound: author,
		UpperBound: author,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, nil
	}
	var blog models.Blog
	if err := json.Unmarshal(result.Rows[0], &blog); err != nil {
		return nil, fmt.Errorf("decode blog row: %w", err)
	}
	if blog.Author != author {
		return nil, nil
	}
	return &blog, nil
}

// GetPosts lists up to limit references to the author's posts, newest
// first. Ordering comes from the contract's table index; callers rely on
// it and do not re-sort.
func (c *Client) GetPosts(ctx context.Context, author string, limit int) ([]models.PostRef, error) {
	result, err := c.getTableRows(ctx, getTableRowsRequest{
		Scope:   author,
		Table:   "posts",
		Limit:   limit,
		Reverse: true,
	})
	if err != nil {
		return nil, err
	}
	refs := make([]models.PostRef, 0, len(result.Rows))
	for _, row := range result.Rows {
		var ref models.PostRef
		if err := json.Unmarshal(row, &ref); err != nil {
			return nil, fmt.Errorf("decode post ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetTrending lists up to limit trending post references ordered by
// score. When category is non-empty only posts in that category are
// returned; the trending table is small enough that the filter runs
// client-side over the score-ordered rows.
func (c *Client) GetTrending(ctx context.Context, category string, limit int) ([]models.PostRef, error) {
	fetch := limit
	if category != "" {
		fetch = limit * 4
	}
	result, err := c.getTableRows(ctx, getTableRowsRequest{
		Scope:   c.contract,
		Table:   "trending",
		Limit:   fetch,
		Reverse: true,
	})
	if err != nil {
		return nil, err
	}
	refs := make([]models.PostRef, 0, limit)
	for _, row := range result.Rows {
		var tr trendingRow
		if err := json.Unmarshal(row, &tr); err != nil {
			return nil, fmt.Errorf("decode trending row: %w", err)
		}
		var ref models.PostRef
		if err := json.Unmarshal(tr.Post, &ref); err != nil {
			return nil, fmt.Errorf("decode trending post ref: %w", err)
		}
		if category != "" && ref.Category != category {
			continue
		}
		refs = append(refs, ref)
		if len(refs) == limit {
			break
		}
	}
	return refs, nil
}

// getBlock fetches a block through the LRU cache.
func (c *Client) getBlock(ctx context.Context, num uint32) (*signedBlock, error) {
	if block, ok := c.blocks.Get(num); ok {
		blockCacheHits.Inc()
		return block, nil
	}
	blockCacheMisses.Inc()

	var block signedBlock
	err := c.call(ctx, "/v1/chain/get_block", getBlockRequest{
		BlockNumOrID: strconv.FormatUint(uint64(num), 10),
	}, &block)
	if err != nil {
		return nil, err
	}
	c.blocks.Add(num, &block)
	return &block, nil
}

// findAction locates an action by the contract with the given name in
// the referenced transaction.
func (c *Client) findAction(ctx context.Context, ref models.TxRef, name string) (json.RawMessage, error) {
	block, err := c.getBlock(ctx, ref.BlockNum)
	if err != nil {
		return nil, err
	}
	for _, btx := range block.Transactions {
		if len(btx.Trx) == 0 || btx.Trx[0] != '{' {
			// Deferred transaction, only an id string.
			continue
		}
		var tx packedTransaction
		if err := json.Unmarshal(btx.Trx, &tx); err != nil {
			c.logger.WithFields(log.Fields{
				"block": ref.BlockNum,
				"error": err,
			}).Warn("Skipping undecodable transaction")
			continue
		}
		if !strings.EqualFold(tx.ID, ref.TransactionID) {
			continue
		}
		for _, act := range tx.Transaction.Actions {
			if act.Account == c.contract && act.Name == name {
				return act.Data, nil
			}
		}
		return nil, fmt.Errorf("transaction %s has no %s action by %s", ref.TransactionID, name, c.contract)
	}
	return nil, fmt.Errorf("transaction %s not found in block %d", ref.TransactionID, ref.BlockNum)
}

// ResolvePost resolves a post reference to the full post action.
func (c *Client) ResolvePost(ctx context.Context, ref models.PostRef) (*models.Post, error) {
	data, err := c.findAction(ctx, ref.Tx, "post")
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("decode post action: %w", err)
	}
	if post.Permlink != ref.Permlink {
		return nil, fmt.Errorf("post action permlink %s/%s does not match reference",
			post.Permlink.Author, post.Permlink.Slug)
	}
	return &post, nil
}

// ResolveProfile resolves a profile reference to the profile action.
func (c *Client) ResolveProfile(ctx context.Context, ref models.TxRef) (*models.Profile, error) {
	data, err := c.findAction(ctx, ref, "profile")
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode profile action: %w", err)
	}
	return &profile, nil
}

// GetProfile resolves an author's profile via their blog row.
func (c *Client) GetProfile(ctx context.Context, author string) (*models.Profile, error) {
	blog, err := c.GetBlog(ctx, author)
	if err != nil {
		return nil, err
	}
	if blog == nil || blog.Profile == nil {
		return nil, fmt.Errorf("no profile for %s", author)
	}
	return c.ResolveProfile(ctx, *blog.Profile)
}

// EncodePermlink returns the canonical path segment for a permlink.
func EncodePermlink(p models.Permlink) string {
	return url.PathEscape(p.Author) + "/" + url.PathEscape(p.Slug)
}
