// Package fetch implements the Archive Fetcher: given a
// ResourceDescriptor's archive URL, produce the raw archive bytes,
// reading through a content-addressed cache first and enforcing a maximum
// archive size.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cristalhq/hedgedhttp"
	"github.com/dustin/go-humanize"

	"github.com/klappy/bible-search-engine/pkg/cache"
	"github.com/klappy/bible-search-engine/pkg/core"
)

// Config controls fetcher behavior, bound from environment variables by
// the CLI config loader.
type Config struct {
	// MaxBytes caps the archive response size (SEARCH_ARCHIVE_MAX_BYTES).
	// A zero value disables the cap.
	MaxBytes int64
	// HedgeDelay is how long to wait before firing a hedged duplicate
	// request when the first hasn't returned yet.
	HedgeDelay time.Duration
	// HedgeUpto bounds how many additional requests a hedge can fire.
	HedgeUpto int
	// CacheTTL is how long fetched archive bytes stay in the cache.
	CacheTTL time.Duration
}

// DefaultConfig returns conservative production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBytes:   200 * 1024 * 1024,
		HedgeDelay: 150 * time.Millisecond,
		HedgeUpto:  2,
		CacheTTL:   15 * time.Minute,
	}
}

// Fetcher is the Archive Fetcher.
type Fetcher struct {
	client *http.Client
	cache  cache.Cache
	cfg    Config
}

// New constructs a Fetcher. cache may be cache.NoopCache{} to disable
// caching entirely; the fetcher functions correctly either way.
func New(c cache.Cache, cfg Config) (*Fetcher, error) {
	if c == nil {
		c = cache.NoopCache{}
	}

	client, err := hedgedhttp.NewClient(cfg.HedgeDelay, cfg.HedgeUpto, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build hedged http client: %w", err)
	}

	return &Fetcher{client: client, cache: c, cfg: cfg}, nil
}

// Fetch retrieves the archive bytes for descriptor's ArchiveURL, consulting
// the cache before issuing an HTTP request. Errors are always a
// *core.FetchError carrying a Reason.
func (f *Fetcher) Fetch(ctx context.Context, descriptor core.ResourceDescriptor) ([]byte, error) {
	key := cache.KeyForURL(descriptor.ArchiveURL)

	if data, ok := f.cache.Get(ctx, key); ok {
		slog.DebugContext(ctx, "fetch: cache hit", "resource", descriptor.ResourceID, "key", key)
		return data, nil
	}

	data, err := f.fetchHTTP(ctx, descriptor)
	if err != nil {
		return nil, err
	}

	f.cache.Put(ctx, key, data, f.cfg.CacheTTL)

	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, descriptor core.ResourceDescriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descriptor.ArchiveURL, nil)
	if err != nil {
		return nil, core.NewFetchError(core.ReasonFetchTransient, fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewFetchError(core.ReasonFetchTimeout, ctx.Err())
		}

		return nil, core.NewFetchError(core.ReasonFetchTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewFetchError(core.ReasonFetchNotFound, fmt.Errorf("archive not found: %s", descriptor.ArchiveURL))
	case resp.StatusCode >= 500:
		return nil, core.NewFetchError(core.ReasonFetchTransient, fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, core.NewFetchError(core.ReasonFetchTransient, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body

	limit := f.cfg.MaxBytes
	if limit > 0 {
		if resp.ContentLength > limit {
			return nil, core.NewFetchError(core.ReasonFetchTooLarge, fmt.Errorf("content-length %s exceeds max %s", humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(limit))))
		}

		// Read one byte past the limit so an unbounded/unknown
		// Content-Length that turns out oversized is still caught.
		reader = io.LimitReader(resp.Body, limit+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, core.NewFetchError(core.ReasonFetchTransient, fmt.Errorf("failed to read response body: %w", err))
	}

	if limit > 0 && int64(len(data)) > limit {
		return nil, core.NewFetchError(core.ReasonFetchTooLarge, fmt.Errorf("archive exceeds max size %s", humanize.IBytes(uint64(limit))))
	}

	return data, nil
}
