package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds database, cache and sync engine settings.
// Load from env and/or a .env file (see LoadEnvFile).
type Config struct {
	// Paths
	DBPath   string // sqlite database file, e.g. /var/lib/libsync/library.db
	CacheDir string // response cache root, e.g. /var/cache/libsync

	// Response cache
	CacheTTL time.Duration // listing + detail cache lifetime (default 24h)

	// HTTP
	ProbeTimeout   time.Duration // connectivity probe (default 20s)
	ListingTimeout time.Duration // category/live listing fetch (default 30s)
	BulkTimeout    time.Duration // vod/series listing fetch, larger payloads (default 90s)
	DetailTimeout  time.Duration // per-item get_vod_info / get_series_info (default 30s)
	GuideTimeout   time.Duration // xmltv guide fetch (default 60s)

	// Rate limiting between successive API calls to the same server.
	RequestInterval time.Duration // default 200ms

	// Enrichment worker pools
	VODWorkers    int // default 8
	SeriesWorkers int // default 4

	// Batching
	BatchSize int // rows per insert transaction (default 1000)

	// Metrics listener ("" = disabled), e.g. ":9105"
	MetricsAddr string

	// Interval between scheduled runs (0 = run once and exit)
	RunInterval time.Duration
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load()
// to use a .env file.
func Load() *Config {
	c := &Config{
		DBPath:          getEnv("LIBSYNC_DB", filepath.Join("database", "library.db")),
		CacheDir:        getEnv("LIBSYNC_CACHE", filepath.Join("database", "cache")),
		CacheTTL:        getEnvDuration("LIBSYNC_CACHE_TTL", 24*time.Hour),
		ProbeTimeout:    getEnvDuration("LIBSYNC_PROBE_TIMEOUT", 20*time.Second),
		ListingTimeout:  getEnvDuration("LIBSYNC_LISTING_TIMEOUT", 30*time.Second),
		BulkTimeout:     getEnvDuration("LIBSYNC_BULK_TIMEOUT", 90*time.Second),
		DetailTimeout:   getEnvDuration("LIBSYNC_DETAIL_TIMEOUT", 30*time.Second),
		GuideTimeout:    getEnvDuration("LIBSYNC_GUIDE_TIMEOUT", 60*time.Second),
		RequestInterval: getEnvDuration("LIBSYNC_REQUEST_INTERVAL", 200*time.Millisecond),
		VODWorkers:      getEnvInt("LIBSYNC_VOD_WORKERS", 8),
		SeriesWorkers:   getEnvInt("LIBSYNC_SERIES_WORKERS", 4),
		BatchSize:       getEnvInt("LIBSYNC_BATCH_SIZE", 1000),
		MetricsAddr:     os.Getenv("LIBSYNC_METRICS_ADDR"),
		RunInterval:     getEnvDuration("LIBSYNC_RUN_INTERVAL", 0),
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.VODWorkers <= 0 {
		c.VODWorkers = 8
	}
	if c.SeriesWorkers <= 0 {
		c.SeriesWorkers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	// Accept plain seconds ("90") or a Go duration ("90s", "24h").
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
