package cachemanager

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/vhosts/internal/log"
)

// ReadThroughCache serves values from cache and falls back to a loader on a
// miss. Concurrent misses for the same key share one load, so a burst of
// readers opens the underlying file once.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache   CacheManager[K, V]
	load    func(ctx context.Context, input I) (V, error)
	bypass  bool
	flights singleflight.Group
}

// NewReadThroughCache wraps load. With bypass every Get calls load directly.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	load func(ctx context.Context, input I) (V, error),
	bypass bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:  cache,
		load:   load,
		bypass: bypass,
	}
}

// Get returns the cached value for key or loads it with load(input).
// Errors from load are returned to every waiter and never cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.load(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	result, err, shared := r.flights.Do(string(key), func() (any, error) {
		value, err := r.load(ctx, input)
		if err != nil {
			return value, err
		}
		r.cache.Set(ctx, key, value, ttl)
		return value, nil
	})
	if shared {
		log.Debug(log.CatCache, "Shared in-flight load", "key", string(key))
	}
	value, _ := result.(V)
	return value, err
}

// Invalidate drops every cached value. Loads already in flight still complete
// and may repopulate their key.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context) error {
	return r.cache.Flush(ctx)
}
