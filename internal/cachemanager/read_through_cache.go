package cachemanager

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ContentKey identifies a file revision: the path, an xxhash of its content
// and a salt that changes whenever the inputs of the computation change.
type ContentKey string

// NewContentKey builds the key for path and content under salt.
func NewContentKey(salt uint64, path string, content []byte) ContentKey {
	return ContentKey(strconv.FormatUint(salt, 16) + ":" + strconv.FormatUint(xxhash.Sum64(content), 16) + ":" + path)
}

// ReadThroughCache computes values on a miss and stores them.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
}

// NewReadThroughCache wraps fn. With shouldSkipCache set every call runs fn.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key or computes it from input. hit
// reports whether the value came from the cache. Errors are not cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (value V, hit bool, err error) {
	if r.shouldSkipCache {
		value, err = r.fn(ctx, input)
		return value, false, err
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, true, nil
	}

	value, err = r.fn(ctx, input)
	if err != nil {
		return value, false, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, false, nil
}
