package network

import (
	"fmt"

	"github.com/bluele/gcache"

	"github.com/couchcryptid/park-access/internal/domain"
)

// CachedReacher memoizes per-source reachable sets. Neighbouring parks
// often snap to the same entry nodes, so a run repeats many searches.
// Cached sets are shared between callers and must not be modified.
type CachedReacher struct {
	cache gcache.Cache
}

// NewCachedReacher wraps inner in an LRU holding up to size sources.
func NewCachedReacher(inner Reacher, size int) *CachedReacher {
	c := gcache.New(size).
		LRU().
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return inner.ReachableFrom(key.(int64))
		}).
		Build()
	return &CachedReacher{cache: c}
}

// ReachableFrom returns the cached set for source, computing it on a miss.
func (c *CachedReacher) ReachableFrom(source int64) (domain.NodeSet, error) {
	v, err := c.cache.Get(source)
	if err != nil {
		return nil, err
	}
	set, ok := v.(domain.NodeSet)
	if !ok {
		return nil, fmt.Errorf("reach cache: unexpected value %T for source %d", v, source)
	}
	return set, nil
}

// Stats returns lookup hits and misses since creation.
func (c *CachedReacher) Stats() (hits, misses uint64) {
	return c.cache.HitCount(), c.cache.MissCount()
}
