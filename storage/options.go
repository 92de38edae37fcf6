package storage

import (
	"log/slog"
)

// DefaultGCThreshold is the log size, in bytes, at which compaction is
// triggered at the tail of the next write. 100 MiB, per spec.md §4.5.
const DefaultGCThreshold = 100 * 1024 * 1024

// config holds the resolved settings for an Engine, built up from
// defaultConfig and any Option overrides supplied to Open.
type config struct {
	gcThreshold int64
	cacheBudget int64
	logger      *slog.Logger
	syncWrites  bool
}

func defaultConfig() config {
	return config{
		gcThreshold: DefaultGCThreshold,
		cacheBudget: DefaultCacheBudget,
		logger:      slog.Default(),
		syncWrites:  true,
	}
}

// Option configures an Engine at Open time.
type Option func(*config)

// WithGCThreshold overrides the log size, in bytes, at which compaction is
// triggered. size must be positive; non-positive values are ignored.
func WithGCThreshold(size int64) Option {
	return func(c *config) {
		if size > 0 {
			c.gcThreshold = size
		}
	}
}

// WithCacheBudget overrides the value cache's total byte budget. size must
// be positive; non-positive values are ignored.
func WithCacheBudget(size int64) Option {
	return func(c *config) {
		if size > 0 {
			c.cacheBudget = size
		}
	}
}

// WithLogger overrides the structured logger used for lifecycle and
// compaction events. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSyncWrites controls whether appended records are fsynced in addition
// to being flushed through the OS write buffer. Defaults to true; disabling
// it trades durability against a crash for write throughput.
func WithSyncWrites(sync bool) Option {
	return func(c *config) {
		c.syncWrites = sync
	}
}
