package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/klappy/bible-search-engine/pkg/api"
	"github.com/spf13/viper"
)

type appConfig struct {
	API     api.Config    `mapstructure:"api"`
	Search  SearchConfig  `mapstructure:"search"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

// SearchConfig holds the engine tunables. Each field binds to one of the
// published environment variables through viper's key replacer:
// search.max_parallelism becomes SEARCH_MAX_PARALLELISM, and so on.
type SearchConfig struct {
	MaxParallelism      int   `mapstructure:"max_parallelism"`
	TimeoutMsDefault    int   `mapstructure:"timeout_ms_default"`
	ArchiveMaxBytes     int64 `mapstructure:"archive_max_bytes"`
	MaxFilesPerResource int   `mapstructure:"max_files_per_resource"`
	PreviewMaxChars     int   `mapstructure:"preview_max_chars"`
	CacheEnabled        *bool `mapstructure:"cache_enabled"`
	NormalizeScores     bool  `mapstructure:"normalize_scores"`
}

// CacheConfig selects and configures the content-addressed archive cache
// backend.
type CacheConfig struct {
	// Backend is one of "memory", "fs", "redis", "s3", or "none".
	Backend string `mapstructure:"backend"`
	// Path is the base directory for the fs backend.
	Path string `mapstructure:"path"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
}

// CatalogConfig holds the Catalog Resolver's upstream and memo settings.
type CatalogConfig struct {
	URL string `mapstructure:"url"`
	// MemoBackend is "memory" (default) or "elasticsearch".
	MemoBackend string   `mapstructure:"memo_backend"`
	ESAddresses []string `mapstructure:"es_addresses"`
	ESIndex     string   `mapstructure:"es_index"`
}

// CacheOn reports whether the archive cache should be active; it defaults
// to enabled when SEARCH_CACHE_ENABLED is unset.
func (c SearchConfig) CacheOn() bool {
	return c.CacheEnabled == nil || *c.CacheEnabled
}

// loadConfig loads the application configuration from the specified file path and environment variables.
// It uses the provided args structure to determine the configuration path.
// The function returns a pointer to the appConfig structure and an error if something goes wrong.
func loadConfig(flags *cmdFlags) (*appConfig, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())

	if flags.ConfigPath != "" {
		v.SetConfigFile(flags.ConfigPath)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg appConfig

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	slog.Debug("Config loaded", slog.Any("config", cfg))

	return &cfg, nil
}
