// Package storage provides the keyspaces of the server.
//
// A MemoryStorage holds a fixed number of numbered databases. Each one is a
// Keyspace split into xxhash-selected shards, every shard guarded by its own
// lock. Values are strings, kept in a *buffer.Buffer, or sorted sets, kept
// in a *ZSet pairing a member dictionary with a skip list.
//
// Basic usage:
//
//	s := storage.NewMemory()
//	defer s.Close()
//
//	db, _ := s.DB(0)
//	_, err := db.Set("key", []byte("value"), storage.SetOptions{})
//	value, ok, err := db.Get("key")
//
// Expired keys are removed lazily on access and by a background cycle that
// samples each shard. When a memory limit is configured, writes first make
// room according to the configured policy.EvictionPolicy.
package storage
