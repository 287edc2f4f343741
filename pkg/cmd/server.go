package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/klappy/bible-search-engine/pkg/api"
	"github.com/klappy/bible-search-engine/pkg/cache"
	"github.com/klappy/bible-search-engine/pkg/catalog"
	"github.com/klappy/bible-search-engine/pkg/content/markdown"
	"github.com/klappy/bible-search-engine/pkg/fetch"
	"github.com/klappy/bible-search-engine/pkg/orchestrator"
)

// RunCommand initializes the logger, loads configuration, wires the cache,
// fetcher, catalog resolver, and orchestrator together, and starts the API
// server. It returns an error if any step fails.
func RunCommand(ctx context.Context, flags *cmdFlags) error {
	if err := initLogger(flags); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize the content-addressed archive cache.
	archiveCache, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create archive cache: %w", err)
	}

	defer archiveCache.Close()

	// Initialize the archive fetcher.
	fetchCfg := fetch.DefaultConfig()
	if cfg.Search.ArchiveMaxBytes > 0 {
		fetchCfg.MaxBytes = cfg.Search.ArchiveMaxBytes
	}

	fetcher, err := fetch.New(archiveCache, fetchCfg)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	// Initialize the catalog resolver.
	memo, err := buildMemo(cfg)
	if err != nil {
		return fmt.Errorf("failed to create catalog memo: %w", err)
	}

	catalogCfg := catalog.DefaultConfig()
	if cfg.Catalog.URL != "" {
		catalogCfg.UpstreamURL = cfg.Catalog.URL
	}

	resolver, err := catalog.New(catalogCfg, memo)
	if err != nil {
		return fmt.Errorf("failed to create catalog resolver: %w", err)
	}

	// Initialize the orchestrator.
	orchOpts := orchestrator.Options{
		MaxParallelism:  cfg.Search.MaxParallelism,
		PreviewMaxChars: cfg.Search.PreviewMaxChars,
		MaxFiles:        cfg.Search.MaxFilesPerResource,
		NormalizeScores: cfg.Search.NormalizeScores,
	}

	if cfg.Search.TimeoutMsDefault > 0 {
		orchOpts.DefaultTimeout = time.Duration(cfg.Search.TimeoutMsDefault) * time.Millisecond
	}

	orch := orchestrator.New(resolver, fetcher, markdown.New(), orchOpts)

	// Initialize and run the API server.
	apiSvc, err := api.New(cfg.API, orch)
	if err != nil {
		return fmt.Errorf("failed to create API service: %w", err)
	}

	slog.InfoContext(ctx, "starting search API server",
		"listen", cfg.API.Listen,
		"cache_backend", cacheBackendName(cfg),
		"archive_max_bytes", humanize.IBytes(uint64(fetchCfg.MaxBytes)),
	)

	if err := apiSvc.Run(ctx); err != nil {
		return fmt.Errorf("failed to run API service: %w", err)
	}

	return nil
}

// cacheBackendName resolves the effective backend label for startup logs.
func cacheBackendName(cfg *appConfig) string {
	if !cfg.Search.CacheOn() {
		return "none"
	}

	if cfg.Cache.Backend == "" {
		return "memory"
	}

	return cfg.Cache.Backend
}

// buildCache constructs the configured cache backend. The engine functions
// correctly with cache.NoopCache{}, so "none" (or SEARCH_CACHE_ENABLED=
// false) is a legitimate production setting, not a degraded one.
func buildCache(ctx context.Context, cfg *appConfig) (cache.Cache, error) {
	if !cfg.Search.CacheOn() {
		return cache.NoopCache{}, nil
	}

	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemory(), nil
	case "none":
		return cache.NoopCache{}, nil
	case "fs":
		if cfg.Cache.Path == "" {
			return nil, fmt.Errorf("cache.path is required for the fs backend")
		}

		return cache.NewFS(cfg.Cache.Path)
	case "redis":
		return cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	case "s3":
		if cfg.Cache.S3Bucket == "" {
			return nil, fmt.Errorf("cache.s3_bucket is required for the s3 backend")
		}

		return cache.NewS3FromConfig(ctx, cfg.Cache.S3Bucket, cfg.Cache.S3Prefix, cfg.Cache.S3Region, cfg.Cache.S3Endpoint)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildMemo constructs the catalog memo backend.
func buildMemo(cfg *appConfig) (catalog.MemoBackend, error) {
	switch cfg.Catalog.MemoBackend {
	case "", "memory":
		return catalog.NewMemoryMemo(), nil
	case "elasticsearch":
		index := cfg.Catalog.ESIndex
		if index == "" {
			index = "bsearch-catalog-memo"
		}

		return catalog.NewESMemo(cfg.Catalog.ESAddresses, index)
	default:
		return nil, fmt.Errorf("unknown catalog memo backend %q", cfg.Catalog.MemoBackend)
	}
}
