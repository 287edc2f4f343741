// Package cache implements the content-addressed archive cache: a pure
// accelerator that the Archive Fetcher reads
// before making an HTTP request and writes through to on success. The engine
// must function correctly when the cache always misses and writes are
// no-ops, so every backend here treats Put as best-effort.
package cache

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is the minimal store contract:
// get(key) -> bytes | miss, put(key, bytes, ttlSeconds).
type Cache interface {
	// Get returns the cached bytes for key, or ok=false on a miss or any
	// backend error (a cache is never allowed to fail a request).
	Get(ctx context.Context, key string) (data []byte, ok bool)
	// Put stores data under key for the given TTL. Failures are logged by
	// the implementation and never returned to the caller.
	Put(ctx context.Context, key string, data []byte, ttl time.Duration)
	// Close releases any resources held by the backend (connections,
	// file handles). Backends with nothing to release implement it as a
	// no-op.
	Close() error
}

// KeyForURL derives the content-address cache key for an archive URL using a
// strong, fast non-cryptographic hash.
func KeyForURL(url string) string {
	sum := xxhash.Sum64String(url)

	const hexDigits = "0123456789abcdef"

	buf := make([]byte, 16)

	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[sum&0xf]
		sum >>= 4
	}

	return string(buf)
}

// NoopCache is a Cache that always misses and discards writes. The
// engine functions correctly when the cache always misses and Put is a
// no-op, so this is the default for SEARCH_CACHE_ENABLED=false
// deployments and for tests.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool)       { return nil, false }
func (NoopCache) Put(context.Context, string, []byte, time.Duration) {}
func (NoopCache) Close() error                                     { return nil }
