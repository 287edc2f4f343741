package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// MemoBackend stores resolved descriptor lists keyed by (language, owner,
// includeHelps). Cache misses never block: Resolver
// couples this with a singleflight group so at most one concurrent upstream
// fill happens per key (request coalescing).
type MemoBackend interface {
	Get(ctx context.Context, key string) ([]core.ResourceDescriptor, bool)
	Set(ctx context.Context, key string, descriptors []core.ResourceDescriptor, ttl time.Duration)
}

// memoKey derives the deterministic memo cache key for a resolution request.
func memoKey(language, owner string, includeHelps bool) string {
	return fmt.Sprintf("%s|%s|%t", language, owner, includeHelps)
}

type memoEntry struct {
	descriptors []core.ResourceDescriptor
	expiresAt   time.Time
}

// MemoryMemo is the default in-process MemoBackend, a short-TTL map guarded
// by a single mutex in the same style as pkg/cache.MemoryCache.
type MemoryMemo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
}

// NewMemoryMemo creates an empty in-process descriptor memo.
func NewMemoryMemo() *MemoryMemo {
	return &MemoryMemo{entries: make(map[string]memoEntry)}
}

func (m *MemoryMemo) Get(_ context.Context, key string) ([]core.ResourceDescriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}

	out := make([]core.ResourceDescriptor, len(entry.descriptors))
	copy(out, entry.descriptors)

	return out, true
}

func (m *MemoryMemo) Set(_ context.Context, key string, descriptors []core.ResourceDescriptor, ttl time.Duration) {
	stored := make([]core.ResourceDescriptor, len(descriptors))
	copy(stored, descriptors)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoEntry{descriptors: stored, expiresAt: time.Now().Add(ttl)}
}

// coalescer wraps a MemoBackend with a singleflight.Group so concurrent
// resolution requests for the same key share one upstream fill instead of
// stampeding the catalog API.
type coalescer struct {
	backend MemoBackend
	group   singleflight.Group
}

func newCoalescer(backend MemoBackend) *coalescer {
	return &coalescer{backend: backend}
}

// getOrFill returns the memoized descriptor list for key, or calls fill
// exactly once across all concurrent callers sharing the key.
func (c *coalescer) getOrFill(ctx context.Context, key string, ttl time.Duration, fill func() ([]core.ResourceDescriptor, error)) ([]core.ResourceDescriptor, error) {
	if cached, ok := c.backend.Get(ctx, key); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		descriptors, err := fill()
		if err != nil {
			return nil, err
		}

		c.backend.Set(ctx, key, descriptors, ttl)

		return descriptors, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]core.ResourceDescriptor), nil
}
