package fibonacci

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachedCalculator memoises the results of another Calculator in memory with
// a TTL. Concurrent requests for the same index share one computation.
//
// Values returned by a CachedCalculator are shared between callers and must
// be treated as read-only.
type CachedCalculator struct {
	inner Calculator
	ttl   time.Duration
	cache *cache.Cache
	group singleflight.Group
}

// NewCachedCalculator wraps inner with a result cache. A non-positive ttl
// selects DefaultCacheTTL. Expired entries are purged every 2·ttl.
func NewCachedCalculator(inner Calculator, ttl time.Duration) *CachedCalculator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCalculator{
		inner: inner,
		ttl:   ttl,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Name returns the wrapped calculator's name.
func (c *CachedCalculator) Name() string { return c.inner.Name() }

// Calculate returns the cached F(n) or computes and stores it. The shared
// computation is detached from the first caller's cancellation so other
// waiters are not failed by it; each caller still stops waiting when its own
// ctx is done.
func (c *CachedCalculator) Calculate(ctx context.Context, n int32) (*big.Int, error) {
	key := strconv.FormatInt(int64(n), 10)
	if v, found := c.cache.Get(key); found {
		if typed, ok := v.(*big.Int); ok {
			return typed, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if v, found := c.cache.Get(key); found {
			return v, nil
		}
		v, err := c.inner.Calculate(context.WithoutCancel(ctx), n)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, v, c.ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, calcError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*big.Int), nil
	}
}

// Len returns the number of cached entries, including expired ones not yet
// purged.
func (c *CachedCalculator) Len() int { return c.cache.ItemCount() }

// Flush removes every cached entry.
func (c *CachedCalculator) Flush() { c.cache.Flush() }
