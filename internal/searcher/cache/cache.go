// Package cache stores evaluated query results in Redis. Entries are keyed by
// the structural key of the query together with the parameters that change
// its results, and expire after the configured TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "retrieval:"

// Store is the key/value backend of the cache.
type Store interface {
	// Lookup reports found=false for a missing key.
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheLookup(false)
}

func (c *QueryCache) Get(ctx context.Context, node *query.Node, p params.Parameters) ([]retrieval.ScoredDocument, bool) {
	key := BuildKey(node, p)
	data, found, err := c.store.Lookup(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	var results []retrieval.ScoredDocument
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheLookup(true)
	c.logger.Debug("cache hit", "query", node.String(), "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, node *query.Node, p params.Parameters, results []retrieval.ScoredDocument) {
	key := BuildKey(node, p)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for node, or computes and stores
// them. Concurrent misses on the same key share one computation. The bool
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	node *query.Node,
	p params.Parameters,
	compute func() ([]retrieval.ScoredDocument, error),
) ([]retrieval.ScoredDocument, bool, error) {
	if results, ok := c.Get(ctx, node, p); ok {
		return results, true, nil
	}
	key := BuildKey(node, p)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if results, ok := c.Get(ctx, node, p); ok {
			return results, nil
		}
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, node, p, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]retrieval.ScoredDocument), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key of node evaluated with p. Parameters that
// do not affect results are ignored.
func BuildKey(node *query.Node, p params.Parameters) string {
	var b strings.Builder
	b.WriteString(string(node.Key()))
	for _, k := range []string{params.QueryType, params.Requested, params.IndexID} {
		fmt.Fprintf(&b, "|%s=%s", k, p.Get(k, ""))
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
