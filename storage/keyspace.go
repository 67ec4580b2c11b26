package storage

import (
	randv2 "math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/msredis/msredis/buffer"
	"github.com/msredis/msredis/storage/policy"
)

// shard represents a single shard of data with its own lock
type shard struct {
	mu   sync.RWMutex
	data map[string]*Value
}

// keyspace is one numbered database split into shards
type keyspace struct {
	index  int
	owner  *MemoryStorage
	shards []shard
}

func (s *MemoryStorage) newKeyspace(index int) *keyspace {
	k := &keyspace{
		index:  index,
		owner:  s,
		shards: make([]shard, s.shards),
	}
	for i := range k.shards {
		k.shards[i].data = make(map[string]*Value)
	}
	return k
}

func (k *keyspace) shardFor(key string) *shard {
	return &k.shards[k.owner.shardIndex(key)]
}

// view runs fn under the shard read lock with the live value stored at key,
// or nil when the key is missing or expired.
func (k *keyspace) view(key string, fn func(v *Value) error) error {
	sh := k.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.data[key]
	expired := ok && v.IsExpired()
	if !ok || expired {
		v = nil
	} else {
		v.touch()
	}
	err := fn(v)
	sh.mu.RUnlock()

	if expired {
		k.deleteExpired(key)
	}
	return err
}

// update runs fn under the shard write lock with the live value stored at
// key, or nil. fn may replace or delete the entry through sh.data.
func (k *keyspace) update(key string, fn func(sh *shard, v *Value) error) error {
	sh := k.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.data[key]
	if ok && v.IsExpired() {
		delete(sh.data, key)
		k.owner.notifyExpired(key)
		v = nil
	}
	if v != nil {
		v.touch()
	}
	return fn(sh, v)
}

// write is update preceded by the memory limit check
func (k *keyspace) write(key string, fn func(sh *shard, v *Value) error) error {
	if err := k.owner.reserve(k); err != nil {
		return err
	}
	return k.update(key, fn)
}

// deleteExpired removes key if it is still expired under the write lock
func (k *keyspace) deleteExpired(key string) {
	sh := k.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if v, ok := sh.data[key]; ok && v.IsExpired() {
		delete(sh.data, key)
		k.owner.notifyExpired(key)
	}
}

// deleteExpiredBatch removes the keys of a batch that are still expired
func (k *keyspace) deleteExpiredBatch(sh *shard, keys []string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, key := range keys {
		if v, ok := sh.data[key]; ok && v.IsExpired() {
			delete(sh.data, key)
			k.owner.notifyExpired(key)
		}
	}
}

// Del deletes one or more keys
func (k *keyspace) Del(keys ...string) int64 {
	deleted := int64(0)
	for _, key := range keys {
		_ = k.update(key, func(sh *shard, v *Value) error {
			if v != nil {
				delete(sh.data, key)
				deleted++
				k.owner.notify(func(o StorageObserver) { o.OnKeyDeleted(key) })
			}
			return nil
		})
	}
	return deleted
}

// Exists counts the keys that exist; repeated keys are counted repeatedly
func (k *keyspace) Exists(keys ...string) int64 {
	count := int64(0)
	for _, key := range keys {
		_ = k.view(key, func(v *Value) error {
			if v != nil {
				count++
			}
			return nil
		})
	}
	return count
}

// Expire sets the expiration of a key
func (k *keyspace) Expire(key string, expiry time.Time) bool {
	found := false
	_ = k.update(key, func(sh *shard, v *Value) error {
		if v == nil {
			return nil
		}
		found = true
		if !time.Now().Before(expiry) {
			delete(sh.data, key)
			k.owner.notify(func(o StorageObserver) { o.OnKeyDeleted(key) })
			return nil
		}
		v.Expiry = &expiry
		return nil
	})
	return found
}

// Persist removes the expiration of a key
func (k *keyspace) Persist(key string) bool {
	changed := false
	_ = k.update(key, func(_ *shard, v *Value) error {
		if v != nil && v.Expiry != nil {
			v.Expiry = nil
			changed = true
		}
		return nil
	})
	return changed
}

// TTL returns the remaining time to live, TTLNoKey or TTLNoExpiry
func (k *keyspace) TTL(key string) time.Duration {
	ttl := TTLNoKey
	_ = k.view(key, func(v *Value) error {
		switch {
		case v == nil:
		case v.Expiry == nil:
			ttl = TTLNoExpiry
		default:
			if d := time.Until(*v.Expiry); d > 0 {
				ttl = d
			}
		}
		return nil
	})
	return ttl
}

// Type returns the type of a key, ValueTypeNone when it does not exist
func (k *keyspace) Type(key string) ValueType {
	t := ValueTypeNone
	_ = k.view(key, func(v *Value) error {
		if v != nil {
			t = v.Type
		}
		return nil
	})
	return t
}

// Keys returns all keys matching a glob pattern
func (k *keyspace) Keys(pattern string) []string {
	keys := make([]string, 0)
	matchAll := pattern == "" || pattern == "*"
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.RLock()
		for key, v := range sh.data {
			if v.IsExpired() {
				continue
			}
			if matchAll || MatchPattern(key, pattern) {
				keys = append(keys, key)
			}
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Scan iterates keys in lexicographic order. The cursor is the number of
// keys already returned; a returned cursor of 0 ends the iteration.
func (k *keyspace) Scan(cursor int64, match string, count int64) (int64, []string) {
	if count <= 0 {
		count = 10
	}
	all := k.Keys("*")
	slices.Sort(all)

	if cursor < 0 || cursor >= int64(len(all)) {
		return 0, []string{}
	}

	end := min(cursor+count, int64(len(all)))
	keys := make([]string, 0, end-cursor)
	for _, key := range all[cursor:end] {
		if match == "" || MatchPattern(key, match) {
			keys = append(keys, key)
		}
	}
	if end == int64(len(all)) {
		end = 0
	}
	return end, keys
}

// KeyCount returns the number of keys, including expired keys not yet reclaimed
func (k *keyspace) KeyCount() int64 {
	count := int64(0)
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.RLock()
		count += int64(len(sh.data))
		sh.mu.RUnlock()
	}
	return count
}

// Flush removes every key
func (k *keyspace) Flush() {
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.Lock()
		sh.data = make(map[string]*Value)
		sh.mu.Unlock()
	}
}

// counts returns the number of live keys and how many of them carry a TTL
func (k *keyspace) counts() (keys, expires int64) {
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.RLock()
		for _, v := range sh.data {
			if v.IsExpired() {
				continue
			}
			keys++
			if v.Expiry != nil {
				expires++
			}
		}
		sh.mu.RUnlock()
	}
	return keys, expires
}

func (k *keyspace) memoryUsage() int64 {
	usage := int64(0)
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.RLock()
		for key, v := range sh.data {
			usage += valueCost(key, v)
		}
		sh.mu.RUnlock()
	}
	return usage
}

func valueCost(key string, v *Value) int64 {
	switch data := v.Data.(type) {
	case *ZSet:
		return policy.ZSetCost(key, data.Len(), data.memberBytes)
	case *buffer.Buffer:
		return policy.StringCost(key, data.Len())
	default:
		return policy.StringCost(key, 0)
	}
}

// sample returns up to n eviction candidates from random shards
func (k *keyspace) sample(n int) []policy.Candidate {
	out := make([]policy.Candidate, 0, n)
	start := randv2.IntN(len(k.shards))
	for i := 0; i < len(k.shards) && len(out) < n; i++ {
		sh := &k.shards[(start+i)%len(k.shards)]
		sh.mu.RLock()
		for key, v := range sh.data {
			out = append(out, policy.Candidate{Key: key, LastAccess: v.lastAccess.Load()})
			if len(out) >= n {
				break
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// evict removes key on behalf of the eviction policy
func (k *keyspace) evict(key string) bool {
	sh := k.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.data[key]; !ok {
		return false
	}
	delete(sh.data, key)
	k.owner.notify(func(o StorageObserver) { o.OnKeyEvicted(key) })
	return true
}
