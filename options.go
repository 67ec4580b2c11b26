package msredis

import (
	"time"

	"github.com/msredis/msredis/storage"
	"github.com/msredis/msredis/storage/policy"
)

// config holds the configuration for an Instance
type config struct {
	// Server settings
	addr         string
	password     string
	readTimeout  time.Duration
	enableServer bool

	// Keyspace settings
	databases       int
	shards          int
	maxMemory       int64
	evictionPolicy  policy.EvictionPolicy
	cleanupConfig   storage.CleanupConfig
	cleanupInterval time.Duration

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:            ":6379",
		enableServer:    true,
		databases:       storage.DefaultDatabases,
		shards:          storage.DefaultShards,
		evictionPolicy:  policy.NoEviction{},
		cleanupConfig:   storage.CleanupConfigDefault,
		cleanupInterval: 100 * time.Millisecond,
		logger:          &defaultLogger{},
	}
}

// Option represents a configuration option for an Instance
type Option func(*config) error

// WithAddr sets the address the server listens on
//
// Example:
//
//	WithAddr(":6379")
//	WithAddr("127.0.0.1:0") // random port, see Instance.Addr
func WithAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return configErr("addr", addr)
		}
		c.addr = addr
		return nil
	}
}

// WithPassword requires clients to AUTH with this password
func WithPassword(password string) Option {
	return func(c *config) error {
		c.password = password
		return nil
	}
}

// WithServerEnabled controls whether the RESP server is started. With the
// server disabled the instance is used only through Storage.
func WithServerEnabled(enabled bool) Option {
	return func(c *config) error {
		c.enableServer = enabled
		return nil
	}
}

// WithReadTimeout closes client connections idle for longer than timeout.
// Zero keeps idle connections open.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return configErr("read timeout", timeout)
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithDatabases sets the number of logical databases (SELECT 0..n-1)
func WithDatabases(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return configErr("databases", n)
		}
		c.databases = n
		return nil
	}
}

// WithShardCount sets the number of lock shards per database. The count is
// rounded up to a power of two.
func WithShardCount(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return configErr("shards", n)
		}
		c.shards = n
		return nil
	}
}

// WithMaxMemory sets the memory limit in bytes and the policy applied when a
// write would exceed it. A limit of 0 disables the check; a nil policy keeps
// noeviction.
//
// Example:
//
//	WithMaxMemory(64<<20, policy.LRU{})
func WithMaxMemory(bytes int64, p policy.EvictionPolicy) Option {
	return func(c *config) error {
		if bytes < 0 {
			return configErr("maxmemory", bytes)
		}
		c.maxMemory = bytes
		if p != nil {
			c.evictionPolicy = p
		}
		return nil
	}
}

// WithCleanupConfig sets how aggressively expired keys are reclaimed in the
// background and how often the cycle runs
func WithCleanupConfig(cfg storage.CleanupConfig, interval time.Duration) Option {
	return func(c *config) error {
		if err := cfg.Validate(); err != nil {
			return &ConfigError{Option: "cleanup", Value: cfg, Err: err}
		}
		if interval <= 0 {
			return configErr("cleanup interval", interval)
		}
		c.cleanupConfig = cfg
		c.cleanupInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger for the instance
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return configErr("logger", logger)
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

// WithDebugLogging turns on Debug output of the default logger, such as
// per-key expiry and eviction messages. It has no effect on a logger set
// with WithLogger.
func WithDebugLogging(enabled bool) Option {
	return func(c *config) error {
		if l, ok := c.logger.(*defaultLogger); ok {
			l.debug = enabled
		}
		return nil
	}
}
