package evidence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cached wraps a Source with a TTL-bounded LRU keyed by scope. Concurrent
// misses for the same scope share one upstream fetch.
type Cached struct {
	source Source
	lru    *expirable.LRU[string, *Bundle]
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache usage.
type CacheStats struct {
	Size   int   `json:"size" yaml:"size"`
	Hits   int64 `json:"hits" yaml:"hits"`
	Misses int64 `json:"misses" yaml:"misses"`
}

// NewCached wraps source. size <= 0 defaults to 128 scopes; ttl <= 0 defaults
// to five minutes.
func NewCached(source Source, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		source: source,
		lru:    expirable.NewLRU[string, *Bundle](size, nil, ttl),
	}
}

// GetEvidence returns the cached bundle for scopeID or fetches it.
func (c *Cached) GetEvidence(ctx context.Context, scopeID string) (*Bundle, error) {
	if b, ok := c.lru.Get(scopeID); ok {
		c.hits.Add(1)
		return copyBundle(b), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The fetch outlives a cancelled caller so that other callers sharing
	// it still get a result.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(scopeID, func() (interface{}, error) {
		b, err := c.source.GetEvidence(shared, scopeID)
		if err != nil {
			return nil, err
		}
		c.lru.Add(scopeID, b)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		c.misses.Add(1)
		return copyBundle(res.Val.(*Bundle)), nil
	}
}

// Invalidate drops scopeID from the cache, or everything when scopeID is empty.
func (c *Cached) Invalidate(scopeID string) {
	if scopeID == "" {
		c.lru.Purge()
		return
	}
	c.lru.Remove(scopeID)
}

// Stats returns a snapshot of cache usage.
func (c *Cached) Stats() CacheStats {
	return CacheStats{Size: c.lru.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func copyBundle(b *Bundle) *Bundle {
	assets := make([]AssetRecord, len(b.Assets))
	copy(assets, b.Assets)
	return &Bundle{ScopeID: b.ScopeID, Assets: assets}
}
