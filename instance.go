package msredis

import (
	"context"
	"sync"

	"github.com/msredis/msredis/server"
	"github.com/msredis/msredis/storage"
)

// Instance is an in-memory Redis-compatible server
type Instance struct {
	// Configuration
	config *config

	// Components
	storage *storage.MemoryStorage
	server  *server.Server

	// State
	mu      sync.RWMutex
	started bool
	closed  bool
}

// New creates an Instance with the given options
//
// The keyspace is usable immediately through Storage; the network server
// is started by Start.
//
// Example:
//
//	inst, err := msredis.New(msredis.WithAddr(":6379"))
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Instance, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	observer := &storageObserver{logger: cfg.logger, metrics: cfg.metrics}
	stor := storage.NewMemory(
		storage.WithDatabases(cfg.databases),
		storage.WithShardCount(cfg.shards),
		storage.WithMemoryLimit(cfg.maxMemory, cfg.evictionPolicy),
		storage.WithCleanupConfig(cfg.cleanupConfig),
		storage.WithCleanupInterval(cfg.cleanupInterval),
		storage.WithObserver(observer),
	)

	inst := &Instance{
		config:  cfg,
		storage: stor,
	}

	if cfg.enableServer {
		srv := server.NewServer(cfg.addr, stor)
		srv.SetPassword(cfg.password)
		srv.SetReadTimeout(cfg.readTimeout)
		srv.SetVersion(RedisVersion)
		srv.SetLogger(&serverLogger{logger: cfg.logger})
		if cfg.metrics != nil {
			srv.SetMetrics(&metricsAdapter{metrics: cfg.metrics})
		}
		inst.server = srv
	}

	return inst, nil
}

// Start starts the network server. It returns once the listener is bound.
//
// Example:
//
//	if err := inst.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
func (i *Instance) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if i.started {
		return ErrAlreadyStarted
	}

	if i.server != nil {
		if err := i.server.Start(); err != nil {
			i.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: i.config.addr})
			return err
		}
		i.config.logger.Info("Server started",
			Field{Key: "addr", Value: i.server.Addr()},
			Field{Key: "databases", Value: i.config.databases},
			Field{Key: "version", Value: Version})
	}

	i.started = true
	return nil
}

// Close stops the server, disconnects clients and stops background expiry.
// Calling Close more than once is safe.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	// Stop server first
	if i.server != nil && i.started {
		if err := i.server.Stop(); err != nil {
			i.config.logger.Error("Error stopping server", Field{Key: "error", Value: err})
		}
	}

	return i.storage.Close()
}

// Storage returns the keyspace for direct access
func (i *Instance) Storage() storage.Storage {
	return i.storage
}

// Addr returns the address the server listens on, or the configured
// address before Start
func (i *Instance) Addr() string {
	if i.server == nil {
		return ""
	}
	return i.server.Addr()
}

// Info returns keyspace, server and version information. When a metrics
// collector is configured, the key count and memory usage are also reported
// to it.
func (i *Instance) Info() map[string]interface{} {
	info := i.storage.Info()

	if i.server != nil {
		info["server"] = i.server.Stats()
	}
	info["version"] = VersionInfo()

	if m := i.config.metrics; m != nil {
		if keys, ok := info["keys"].(int64); ok {
			m.RecordKeyCount(keys)
		}
		if mem, ok := info["memory_usage"].(int64); ok {
			m.RecordMemoryUsage(mem)
		}
	}

	return info
}
