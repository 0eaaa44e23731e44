package resolve

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Cache defaults.
const (
	DefaultCacheTTL             = 10 * time.Minute
	DefaultCacheCleanupInterval = 30 * time.Minute
)

// cacheKey identifies a resolution. The graph generation is part of the
// key, so any edge change makes earlier entries unreachable.
type cacheKey struct {
	kind       Kind
	start      string
	goal       string
	generation uint64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.kind, k.start, k.goal, k.generation)
}

// outcomeCache stores successful outcomes with a TTL and collapses
// concurrent identical requests into one computation.
type outcomeCache struct {
	items  *gocache.Cache
	flight singleflight.Group
}

func newOutcomeCache(ttl time.Duration) *outcomeCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &outcomeCache{items: gocache.New(ttl, DefaultCacheCleanupInterval)}
}

func (c *outcomeCache) get(k cacheKey) (Outcome, bool) {
	v, ok := c.items.Get(k.String())
	if !ok {
		return Outcome{}, false
	}
	o, ok := v.(Outcome)
	if !ok {
		return Outcome{}, false
	}
	o = o.clone()
	o.Cached = true
	return o, true
}

// do runs fn once per key among concurrent callers and caches a
// successful result. shared reports whether the result came from another
// caller's computation. fn runs detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (c *outcomeCache) do(ctx context.Context, k cacheKey, fn func(context.Context) (Outcome, error)) (Outcome, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(k.String(), func() (any, error) {
		o, err := fn(detached)
		if err != nil {
			return nil, err
		}
		c.items.SetDefault(k.String(), o.clone())
		return o, nil
	})
	select {
	case <-ctx.Done():
		return Outcome{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Shared, res.Err
		}
		return res.Val.(Outcome).clone(), res.Shared, nil
	}
}

func (c *outcomeCache) flush() {
	c.items.Flush()
}

func (c *outcomeCache) len() int {
	return c.items.ItemCount()
}
