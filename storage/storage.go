package storage

import (
	"errors"
	"time"

	"github.com/msredis/msredis/skiplist"
)

// Errors returned by keyspace operations
var (
	// ErrWrongType indicates an operation against a key holding another type
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger indicates a string value that is not a base-10 int64
	ErrNotInteger = errors.New("value is not an integer or out of range")

	// ErrOverflow indicates an increment that would overflow
	ErrOverflow = errors.New("increment or decrement would overflow")

	// ErrScoreNaN indicates an increment that produced NaN
	ErrScoreNaN = errors.New("resulting score is not a number (NaN)")

	// ErrInvalidDB indicates a database index outside the configured range
	ErrInvalidDB = errors.New("DB index is out of range")

	// ErrOffsetOutOfRange indicates a SETRANGE offset that is negative or too large
	ErrOffsetOutOfRange = errors.New("offset is out of range")

	// ErrOutOfMemory indicates a write refused because the memory limit is reached
	ErrOutOfMemory = errors.New("OOM command not allowed when used memory > 'maxmemory'")
)

// TTL results for keys without a remaining lifetime
const (
	TTLNoKey    time.Duration = -2
	TTLNoExpiry time.Duration = -1
)

// maxStringSize bounds values grown by SETRANGE and APPEND (512MB)
const maxStringSize = 512 * 1024 * 1024

// Storage is a set of numbered keyspaces sharing one memory budget
type Storage interface {
	// DB returns the keyspace with the given index
	DB(index int) (Keyspace, error)

	// Databases returns the number of keyspaces
	Databases() int

	// FlushAll removes all keys from every keyspace
	FlushAll() error

	// MemoryUsage returns the estimated memory held by stored entries
	MemoryUsage() int64

	// Info and stats
	Info() map[string]interface{}
	DatabaseInfo() map[int]map[string]interface{}

	// Close stops background work
	Close() error
}

// Keyspace is one logical database
type Keyspace interface {
	// String operations
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, opts SetOptions) (bool, error)
	GetSet(key string, value []byte) ([]byte, bool, error)
	Append(key string, value []byte) (int64, error)
	StrLen(key string) (int64, error)
	GetRange(key string, start, end int64) ([]byte, error)
	SetRange(key string, offset int64, value []byte) (int64, error)
	IncrBy(key string, delta int64) (int64, error)

	// Key operations
	Del(keys ...string) int64
	Exists(keys ...string) int64
	Expire(key string, expiry time.Time) bool
	Persist(key string) bool
	TTL(key string) time.Duration
	Type(key string) ValueType
	Keys(pattern string) []string
	Scan(cursor int64, match string, count int64) (int64, []string)
	KeyCount() int64
	Flush()

	// Sorted set operations
	ZAdd(key string, opts ZAddOptions, members ...ZMember) (int64, error)
	ZAddIncr(key string, opts ZAddOptions, m ZMember) (float64, bool, error)
	ZIncrBy(key string, delta float64, member []byte) (float64, error)
	ZRem(key string, members ...[]byte) (int64, error)
	ZScore(key string, member []byte) (float64, bool, error)
	ZCard(key string) (int64, error)
	ZRank(key string, member []byte, reverse bool) (int64, bool, error)
	ZRange(key string, start, stop int64, reverse bool) ([]ZMember, error)
	ZRangeByScore(key string, r skiplist.ScoreRange, reverse bool, offset, count int64) ([]ZMember, error)
	ZCount(key string, r skiplist.ScoreRange) (int64, error)
	ZRemRangeByRank(key string, start, stop int64) (int64, error)
	ZRemRangeByScore(key string, r skiplist.ScoreRange) (int64, error)
}

// SetOptions controls SET behaviour
type SetOptions struct {
	// Expiry is the absolute expiration time, nil for none
	Expiry *time.Time
	// KeepTTL retains the existing expiration
	KeepTTL bool
	// NX only sets the key if it does not exist
	NX bool
	// XX only sets the key if it already exists
	XX bool
}

// StorageObserver provides hooks for storage events. Hooks run while a
// shard lock is held and must not call back into the storage.
type StorageObserver interface {
	OnKeySet(key string)
	OnKeyDeleted(key string)
	OnKeyExpired(key string)
	OnKeyEvicted(key string)
}

// CleanupConfig holds configuration for incremental cleanup
type CleanupConfig struct {
	// SampleSize is the number of keys to sample per round
	SampleSize int
	// MaxRounds is the maximum number of rounds per cleanup cycle
	MaxRounds int
	// BatchSize is the number of keys to delete in each batch
	BatchSize int
	// ExpiredThreshold continues cleanup if this fraction of sampled keys are expired
	ExpiredThreshold float64
}

// CleanupConfigDefault mirrors the Redis active expire cycle
var CleanupConfigDefault = CleanupConfig{
	SampleSize:       20,
	MaxRounds:        4,
	BatchSize:        10,
	ExpiredThreshold: 0.25,
}

// CleanupConfigLowLatency keeps lock hold times short
var CleanupConfigLowLatency = CleanupConfig{
	SampleSize:       15,
	MaxRounds:        3,
	BatchSize:        8,
	ExpiredThreshold: 0.4,
}

// CleanupConfigAggressive reclaims expired keys faster on large datasets
var CleanupConfigAggressive = CleanupConfig{
	SampleSize:       50,
	MaxRounds:        8,
	BatchSize:        25,
	ExpiredThreshold: 0.15,
}

// Validate reports whether the configuration is usable
func (c CleanupConfig) Validate() error {
	if c.SampleSize <= 0 || c.MaxRounds <= 0 || c.BatchSize <= 0 {
		return errors.New("cleanup sample size, rounds and batch size must be positive")
	}
	if c.ExpiredThreshold < 0 || c.ExpiredThreshold > 1 {
		return errors.New("cleanup expired threshold must be within [0, 1]")
	}
	return nil
}
