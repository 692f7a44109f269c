package chain_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"decfeeds/chain"
	"decfeeds/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "decentium"

type tableRequest struct {
	Code       string `json:"code"`
	Scope      string `json:"scope"`
	Table      string `json:"table"`
	LowerBound string `json:"lower_bound"`
	Limit      int    `json:"limit"`
	Reverse    bool   `json:"reverse"`
}

// fakeNode serves a minimal nodeos API backed by static table rows and
// blocks.
type fakeNode struct {
	tables     map[string][]interface{} // keyed by scope/table
	blocks     map[string]interface{}   // keyed by block num
	blockCalls int32
}

func (n *fakeNode) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chain/get_table_rows", func(w http.ResponseWriter, r *http.Request) {
		var req tableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rows := n.tables[req.Scope+"/"+req.Table]
		if req.Limit > 0 && len(rows) > req.Limit {
			rows = rows[:req.Limit]
		}
		if rows == nil {
			rows = []interface{}{}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"rows": rows, "more": false})
	})
	mux.HandleFunc("/v1/chain/get_block", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n.blockCalls, 1)
		var req struct {
			BlockNumOrID string `json:"block_num_or_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		block, ok := n.blocks[req.BlockNumOrID]
		if !ok {
			http.Error(w, "unknown block", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(block)
	})
	return mux
}

func postBlock(txID string, actions ...map[string]interface{}) interface{} {
	return map[string]interface{}{
		"timestamp": "2023-04-01T10:00:00.000",
		"transactions": []interface{}{
			map[string]interface{}{
				"status": "executed",
				"trx": map[string]interface{}{
					"id": txID,
					"transaction": map[string]interface{}{
						"actions": actions,
					},
				},
			},
		},
	}
}

func newTestClient(t *testing.T, node *fakeNode) *chain.Client {
	t.Helper()
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)

	client, err := chain.New(chain.Options{
		NodeURL:        srv.URL,
		Contract:       contract,
		BlockCacheSize: 16,
		HTTPClient:     srv.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestGetBlog(t *testing.T) {
	node := &fakeNode{tables: map[string][]interface{}{
		contract + "/blogs": {
			map[string]interface{}{
				"author":  "alice",
				"profile": map[string]interface{}{"block_num": 7, "transaction_id": "ab12"},
			},
		},
	}}
	client := newTestClient(t, node)

	blog, err := client.GetBlog(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, blog)
	assert.Equal(t, "alice", blog.Author)
	require.NotNil(t, blog.Profile)
	assert.Equal(t, uint32(7), blog.Profile.BlockNum)
}

func TestGetBlogAbsent(t *testing.T) {
	node := &fakeNode{tables: map[string][]interface{}{}}
	client := newTestClient(t, node)

	blog, err := client.GetBlog(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, blog)
}

func TestGetBlogNeighborRow(t *testing.T) {
	// The table lookup is a lower-bound scan; a row for a different
	// author must not be mistaken for the requested one.
	node := &fakeNode{tables: map[string][]interface{}{
		contract + "/blogs": {
			map[string]interface{}{"author": "bob"},
		},
	}}
	client := newTestClient(t, node)

	blog, err := client.GetBlog(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, blog)
}

func TestGetPosts(t *testing.T) {
	node := &fakeNode{tables: map[string][]interface{}{
		"alice/posts": {
			map[string]interface{}{
				"permlink":  map[string]interface{}{"author": "alice", "slug": "second"},
				"timestamp": "2023-04-02T10:00:00",
				"category":  "tech",
				"ref":       map[string]interface{}{"block_num": 11, "transaction_id": "t2"},
			},
			map[string]interface{}{
				"permlink":  map[string]interface{}{"author": "alice", "slug": "first"},
				"timestamp": "2023-04-01T10:00:00",
				"category":  "tech",
				"ref":       map[string]interface{}{"block_num": 10, "transaction_id": "t1"},
			},
		},
	}}
	client := newTestClient(t, node)

	refs, err := client.GetPosts(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "second", refs[0].Permlink.Slug)
	assert.Equal(t, "first", refs[1].Permlink.Slug)
}

func TestGetTrendingCategoryFilter(t *testing.T) {
	ref := func(slug, category string) map[string]interface{} {
		return map[string]interface{}{
			"score": 100,
			"post": map[string]interface{}{
				"permlink":  map[string]interface{}{"author": "alice", "slug": slug},
				"timestamp": "2023-04-01T10:00:00",
				"category":  category,
				"ref":       map[string]interface{}{"block_num": 10, "transaction_id": "t1"},
			},
		}
	}
	node := &fakeNode{tables: map[string][]interface{}{
		contract + "/trending": {
			ref("a", "tech"),
			ref("b", "art"),
			ref("c", "tech"),
		},
	}}
	client := newTestClient(t, node)

	refs, err := client.GetTrending(context.Background(), "tech", 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "a", refs[0].Permlink.Slug)
	assert.Equal(t, "c", refs[1].Permlink.Slug)

	all, err := client.GetTrending(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestResolvePost(t *testing.T) {
	node := &fakeNode{
		blocks: map[string]interface{}{
			"10": postBlock("t1", map[string]interface{}{
				"account": contract,
				"name":    "post",
				"data": map[string]interface{}{
					"permlink": map[string]interface{}{"author": "alice", "slug": "hello"},
					"title":    "Hello world",
					"doc": map[string]interface{}{
						"type": "doc",
						"content": []interface{}{map[string]interface{}{
							"type":    "paragraph",
							"content": []interface{}{map[string]interface{}{"type": "text", "text": "hi"}},
						}},
					},
					"metadata": map[string]interface{}{"summary": "greeting"},
				},
			}),
		},
	}
	client := newTestClient(t, node)

	ref := models.PostRef{
		Permlink: models.Permlink{Author: "alice", Slug: "hello"},
		Tx:       models.TxRef{BlockNum: 10, TransactionID: "t1"},
	}
	post, err := client.ResolvePost(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", post.Title)
	require.NotNil(t, post.Metadata)
	assert.Equal(t, "greeting", post.Metadata.Summary)

	// Second resolve from the same block must hit the cache.
	_, err = client.ResolvePost(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&node.blockCalls))
}

func TestResolvePostMissingAction(t *testing.T) {
	node := &fakeNode{
		blocks: map[string]interface{}{
			"10": postBlock("t1", map[string]interface{}{
				"account": "someoneelse",
				"name":    "transfer",
				"data":    map[string]interface{}{},
			}),
		},
	}
	client := newTestClient(t, node)

	_, err := client.ResolvePost(context.Background(), models.PostRef{
		Permlink: models.Permlink{Author: "alice", Slug: "hello"},
		Tx:       models.TxRef{BlockNum: 10, TransactionID: "t1"},
	})
	assert.Error(t, err)
}

func TestResolvePostPermlinkMismatch(t *testing.T) {
	node := &fakeNode{
		blocks: map[string]interface{}{
			"10": postBlock("t1", map[string]interface{}{
				"account": contract,
				"name":    "post",
				"data": map[string]interface{}{
					"permlink": map[string]interface{}{"author": "mallory", "slug": "other"},
					"title":    "Spoof",
					"doc":      map[string]interface{}{"type": "doc"},
				},
			}),
		},
	}
	client := newTestClient(t, node)

	_, err := client.ResolvePost(context.Background(), models.PostRef{
		Permlink: models.Permlink{Author: "alice", Slug: "hello"},
		Tx:       models.TxRef{BlockNum: 10, TransactionID: "t1"},
	})
	assert.Error(t, err)
}

func TestGetProfile(t *testing.T) {
	node := &fakeNode{
		tables: map[string][]interface{}{
			contract + "/blogs": {
				map[string]interface{}{
					"author":  "alice",
					"profile": map[string]interface{}{"block_num": 7, "transaction_id": "p1"},
				},
			},
		},
		blocks: map[string]interface{}{
			"7": postBlock("p1", map[string]interface{}{
				"account": contract,
				"name":    "profile",
				"data":    map[string]interface{}{"name": "Alice", "bio": "writes things"},
			}),
		},
	}
	client := newTestClient(t, node)

	profile, err := client.GetProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "writes things", profile.Bio)

	_, err = client.GetProfile(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestCallRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"rows":[],"more":false}`)
	}))
	defer srv.Close()

	client, err := chain.New(chain.Options{
		NodeURL:    srv.URL,
		Contract:   contract,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	blog, err := client.GetBlog(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, blog)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEncodePermlink(t *testing.T) {
	assert.Equal(t, "alice/hello-world", chain.EncodePermlink(models.Permlink{
		Author: "alice",
		Slug:   "hello-world",
	}))
}
