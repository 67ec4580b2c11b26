package storage

import (
	"fmt"
	randv2 "math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/msredis/msredis/storage/policy"
)

const (
	// DefaultDatabases is the number of keyspaces created by NewMemory
	DefaultDatabases = 16

	// DefaultShards is the number of shards per keyspace
	DefaultShards = 64

	// evictionSampleSize is the number of keys sampled per eviction round
	evictionSampleSize = 16
)

// MemoryStorage implements an in-memory storage engine
type MemoryStorage struct {
	// Global lock for metadata operations
	mu        sync.RWMutex
	databases []*keyspace

	// Sharding configuration
	shards    int
	shardMask uint64
	numDBs    int

	// Memory management
	memoryLimit int64
	eviction    policy.EvictionPolicy
	observers   []StorageObserver

	// Background cleanup
	cleanupStop     chan struct{}
	cleanupDone     chan struct{}
	cleanupInterval time.Duration
	cleanupConfig   CleanupConfig
	closeOnce       sync.Once

	// Stats
	expiredKeys atomic.Int64
	evictedKeys atomic.Int64
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithShardCount sets the number of shards per keyspace.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) MemoryOption {
	return func(s *MemoryStorage) {
		if count > 0 {
			s.shards = nextPowerOf2(count)
			s.shardMask = uint64(s.shards - 1)
		}
	}
}

// WithDatabases sets the number of keyspaces
func WithDatabases(n int) MemoryOption {
	return func(s *MemoryStorage) {
		if n > 0 {
			s.numDBs = n
		}
	}
}

// WithMemoryLimit sets the memory budget in bytes and the policy applied
// when it is exceeded. A limit of zero disables the check.
func WithMemoryLimit(bytes int64, p policy.EvictionPolicy) MemoryOption {
	return func(s *MemoryStorage) {
		s.memoryLimit = bytes
		if p != nil {
			s.eviction = p
		}
	}
}

// WithCleanupConfig sets the expired key sampling configuration
func WithCleanupConfig(config CleanupConfig) MemoryOption {
	return func(s *MemoryStorage) {
		s.cleanupConfig = config
	}
}

// WithCleanupInterval sets how often expired keys are sampled
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStorage) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// WithObserver registers a storage observer
func WithObserver(o StorageObserver) MemoryOption {
	return func(s *MemoryStorage) {
		s.observers = append(s.observers, o)
	}
}

// NewMemory creates a new in-memory storage instance and starts its
// background expiry cycle
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		shards:          DefaultShards,
		shardMask:       DefaultShards - 1,
		numDBs:          DefaultDatabases,
		eviction:        policy.NoEviction{},
		cleanupStop:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		cleanupInterval: 100 * time.Millisecond,
		cleanupConfig:   CleanupConfigDefault,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.databases = make([]*keyspace, s.numDBs)
	for i := range s.databases {
		s.databases[i] = s.newKeyspace(i)
	}

	go s.cleanupExpiredKeys()

	return s
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// shardIndex returns the shard holding key
func (s *MemoryStorage) shardIndex(key string) uint64 {
	return xxhash.Sum64String(key) & s.shardMask
}

// DB returns the keyspace with the given index
func (s *MemoryStorage) DB(index int) (Keyspace, error) {
	if index < 0 || index >= len(s.databases) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDB, index)
	}
	return s.databases[index], nil
}

// Databases returns the number of keyspaces
func (s *MemoryStorage) Databases() int {
	return len(s.databases)
}

// FlushAll removes all keys from all databases
func (s *MemoryStorage) FlushAll() error {
	for _, db := range s.databases {
		db.Flush()
	}
	return nil
}

// MemoryUsage returns current memory usage in bytes
func (s *MemoryStorage) MemoryUsage() int64 {
	usage := int64(0)
	for _, db := range s.databases {
		usage += db.memoryUsage()
	}
	return usage
}

// Info returns storage information
func (s *MemoryStorage) Info() map[string]interface{} {
	s.mu.RLock()
	memLimit := s.memoryLimit
	s.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	keys := int64(0)
	for _, db := range s.databases {
		keys += db.KeyCount()
	}

	return map[string]interface{}{
		"keys":             keys,
		"memory_usage":     s.MemoryUsage(),
		"memory_limit":     memLimit,
		"maxmemory_policy": s.eviction.Name(),
		"databases":        len(s.databases),
		"shards":           s.shards,
		"expired_keys":     s.expiredKeys.Load(),
		"evicted_keys":     s.evictedKeys.Load(),
		"go_memory":        m.Alloc,
	}
}

// DatabaseInfo returns key and expiry counts for every non-empty database
func (s *MemoryStorage) DatabaseInfo() map[int]map[string]interface{} {
	dbInfo := make(map[int]map[string]interface{})
	for i, db := range s.databases {
		keys, expires := db.counts()
		if keys == 0 {
			continue
		}
		dbInfo[i] = map[string]interface{}{
			"keys":    keys,
			"expires": expires,
		}
	}
	return dbInfo
}

// Close shuts down the storage
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.cleanupStop)
		<-s.cleanupDone
	})
	return nil
}

// SetMemoryLimit sets the memory limit
func (s *MemoryStorage) SetMemoryLimit(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memoryLimit = bytes
}

// GetMemoryLimit returns the current memory limit
func (s *MemoryStorage) GetMemoryLimit() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memoryLimit
}

// AddObserver adds a storage observer
func (s *MemoryStorage) AddObserver(observer StorageObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// SetCleanupConfig updates the cleanup configuration
func (s *MemoryStorage) SetCleanupConfig(config CleanupConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupConfig = config
}

// GetCleanupConfig returns the current cleanup configuration
func (s *MemoryStorage) GetCleanupConfig() CleanupConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cleanupConfig
}

func (s *MemoryStorage) notify(fn func(StorageObserver)) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, o := range observers {
		fn(o)
	}
}

func (s *MemoryStorage) notifyExpired(key string) {
	s.expiredKeys.Add(1)
	s.notify(func(o StorageObserver) { o.OnKeyExpired(key) })
}

// reserve makes room before a write to db. It returns ErrOutOfMemory when
// the limit is exceeded and the policy refuses to evict.
func (s *MemoryStorage) reserve(db *keyspace) error {
	limit := s.GetMemoryLimit()
	if limit <= 0 {
		return nil
	}
	for attempt := 0; attempt < 8; attempt++ {
		if s.MemoryUsage() <= limit {
			return nil
		}
		victims := s.eviction.Victims(db.sample(evictionSampleSize), 1)
		if len(victims) == 0 {
			if _, ok := s.eviction.(policy.NoEviction); ok || db.KeyCount() == 0 {
				return ErrOutOfMemory
			}
			continue
		}
		for _, key := range victims {
			if db.evict(key) {
				s.evictedKeys.Add(1)
			}
		}
	}
	if s.MemoryUsage() > limit {
		return ErrOutOfMemory
	}
	return nil
}

// cleanupExpiredKeys runs in background to clean up expired keys
func (s *MemoryStorage) cleanupExpiredKeys() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.cleanupStop:
			return
		case <-ticker.C:
			s.performCleanup()
		}
	}
}

// performCleanup removes expired keys using incremental sampling
func (s *MemoryStorage) performCleanup() {
	config := s.GetCleanupConfig()
	for _, db := range s.databases {
		for i := range db.shards {
			s.cleanupShard(db, &db.shards[i], config)
		}
	}
}

// cleanupShard samples a shard repeatedly while enough of the sample is expired
func (s *MemoryStorage) cleanupShard(db *keyspace, sh *shard, config CleanupConfig) {
	for round := 0; round < config.MaxRounds; round++ {
		expired := sampleExpired(sh, config.SampleSize)
		if len(expired) == 0 {
			return
		}

		for i := 0; i < len(expired); i += config.BatchSize {
			end := min(i+config.BatchSize, len(expired))
			db.deleteExpiredBatch(sh, expired[i:end])
			if end < len(expired) {
				runtime.Gosched()
			}
		}

		if float64(len(expired))/float64(config.SampleSize) < config.ExpiredThreshold {
			return
		}
		runtime.Gosched()
	}
}

// sampleExpired reservoir-samples keys of a shard and returns the expired ones
func sampleExpired(sh *shard, sampleSize int) []string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if len(sh.data) == 0 {
		return nil
	}

	sampled := make([]string, 0, min(sampleSize, len(sh.data)))
	i := 0
	for key := range sh.data {
		if i < sampleSize {
			sampled = append(sampled, key)
		} else if j := randv2.IntN(i + 1); j < sampleSize {
			sampled[j] = key
		}
		i++
	}

	expired := sampled[:0]
	for _, key := range sampled {
		if sh.data[key].IsExpired() {
			expired = append(expired, key)
		}
	}
	return expired
}
