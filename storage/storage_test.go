package storage_test

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/msredis/msredis/storage"
	"github.com/msredis/msredis/storage/policy"
)

func openDB(t *testing.T, opts ...storage.MemoryOption) (*storage.MemoryStorage, storage.Keyspace) {
	t.Helper()
	s := storage.NewMemory(opts...)
	t.Cleanup(func() { _ = s.Close() })

	db, err := s.DB(0)
	if err != nil {
		t.Fatalf("DB(0) error = %v", err)
	}
	return s, db
}

func mustSet(t *testing.T, db storage.Keyspace, key, value string) {
	t.Helper()
	if _, err := db.Set(key, []byte(value), storage.SetOptions{}); err != nil {
		t.Fatalf("Set(%q) error = %v", key, err)
	}
}

func TestMemoryStorage(t *testing.T) {
	_, db := openDB(t)

	written, err := db.Set("key1", []byte("value1"), storage.SetOptions{})
	if err != nil || !written {
		t.Fatalf("Set() = %v, %v", written, err)
	}

	value, ok, err := db.Get("key1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if string(value) != "value1" {
		t.Errorf("Get() = %s, want value1", value)
	}

	// Mutating the returned slice must not touch the stored value
	value[0] = 'X'
	again, _, _ := db.Get("key1")
	if string(again) != "value1" {
		t.Errorf("Get() after caller mutation = %s, want value1", again)
	}

	if _, ok, _ := db.Get("nonexistent"); ok {
		t.Fatal("Expected key to not exist")
	}
}

func TestMemoryStorageEmptyValue(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "empty", "")

	value, ok, err := db.Get("empty")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if value == nil || len(value) != 0 {
		t.Errorf("Get() = %#v, want empty non-nil slice", value)
	}
}

func TestMemoryStorageSetOptions(t *testing.T) {
	_, db := openDB(t)

	if written, _ := db.Set("k", []byte("a"), storage.SetOptions{XX: true}); written {
		t.Error("Set(XX) wrote a missing key")
	}
	if written, _ := db.Set("k", []byte("a"), storage.SetOptions{NX: true}); !written {
		t.Error("Set(NX) did not write a missing key")
	}
	if written, _ := db.Set("k", []byte("b"), storage.SetOptions{NX: true}); written {
		t.Error("Set(NX) overwrote an existing key")
	}
	if written, _ := db.Set("k", []byte("c"), storage.SetOptions{XX: true}); !written {
		t.Error("Set(XX) did not overwrite an existing key")
	}
	if v, _, _ := db.Get("k"); string(v) != "c" {
		t.Errorf("Get() = %s, want c", v)
	}

	expiry := time.Now().Add(time.Hour)
	_, _ = db.Set("ttl", []byte("v"), storage.SetOptions{Expiry: &expiry})
	_, _ = db.Set("ttl", []byte("w"), storage.SetOptions{KeepTTL: true})
	if ttl := db.TTL("ttl"); ttl <= 0 {
		t.Errorf("TTL() after KEEPTTL = %v, want positive", ttl)
	}
	_, _ = db.Set("ttl", []byte("x"), storage.SetOptions{})
	if ttl := db.TTL("ttl"); ttl != storage.TTLNoExpiry {
		t.Errorf("TTL() after plain Set = %v, want %v", ttl, storage.TTLNoExpiry)
	}
}

func TestMemoryStorageExpiry(t *testing.T) {
	_, db := openDB(t)

	past := time.Now().Add(-time.Hour)
	if _, err := db.Set("expired", []byte("value"), storage.SetOptions{Expiry: &past}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := db.Get("expired"); ok {
		t.Fatal("Expected expired key to not exist")
	}

	future := time.Now().Add(time.Hour)
	if _, err := db.Set("future", []byte("value"), storage.SetOptions{Expiry: &future}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, ok, _ := db.Get("future")
	if !ok {
		t.Fatal("Expected future key to exist")
	}
	if string(value) != "value" {
		t.Errorf("Get() = %s, want value", value)
	}
}

func TestMemoryStorageStrings(t *testing.T) {
	_, db := openDB(t)

	n, err := db.Append("s", []byte("Hello"))
	if err != nil || n != 5 {
		t.Fatalf("Append() = %d, %v, want 5", n, err)
	}
	n, _ = db.Append("s", []byte(" World"))
	if n != 11 {
		t.Errorf("Append() = %d, want 11", n)
	}
	if n, _ := db.StrLen("s"); n != 11 {
		t.Errorf("StrLen() = %d, want 11", n)
	}
	if n, _ := db.StrLen("missing"); n != 0 {
		t.Errorf("StrLen(missing) = %d, want 0", n)
	}

	tests := []struct {
		start, end int64
		want       string
	}{
		{0, 4, "Hello"},
		{-5, -1, "World"},
		{0, -1, "Hello World"},
		{6, 100, "World"},
		{5, 2, ""},
		{-100, 1, "He"},
		{20, 30, ""},
	}
	for _, tt := range tests {
		got, err := db.GetRange("s", tt.start, tt.end)
		if err != nil {
			t.Fatalf("GetRange(%d, %d) error = %v", tt.start, tt.end, err)
		}
		if string(got) != tt.want {
			t.Errorf("GetRange(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}

	n, err = db.SetRange("s", 6, []byte("Redis"))
	if err != nil || n != 11 {
		t.Fatalf("SetRange() = %d, %v, want 11", n, err)
	}
	if v, _, _ := db.Get("s"); string(v) != "Hello Redis" {
		t.Errorf("Get() = %q, want Hello Redis", v)
	}

	n, _ = db.SetRange("pad", 3, []byte("x"))
	if n != 4 {
		t.Errorf("SetRange(pad) = %d, want 4", n)
	}
	if v, _, _ := db.Get("pad"); string(v) != "\x00\x00\x00x" {
		t.Errorf("Get(pad) = %q, want zero padded", v)
	}

	if _, err := db.SetRange("s", -1, []byte("x")); !errors.Is(err, storage.ErrOffsetOutOfRange) {
		t.Errorf("SetRange(-1) error = %v, want ErrOffsetOutOfRange", err)
	}

	old, ok, _ := db.GetSet("s", []byte("new"))
	if !ok || string(old) != "Hello Redis" {
		t.Errorf("GetSet() = %q, %v", old, ok)
	}
	if _, ok, _ := db.GetSet("fresh", []byte("v")); ok {
		t.Error("GetSet(fresh) reported a previous value")
	}
}

func TestMemoryStorageIncrBy(t *testing.T) {
	_, db := openDB(t)

	if n, err := db.IncrBy("counter", 1); err != nil || n != 1 {
		t.Fatalf("IncrBy() = %d, %v, want 1", n, err)
	}
	if n, _ := db.IncrBy("counter", -11); n != -10 {
		t.Errorf("IncrBy(-11) = %d, want -10", n)
	}
	if v, _, _ := db.Get("counter"); string(v) != "-10" {
		t.Errorf("Get() = %s, want -10", v)
	}

	mustSet(t, db, "text", "abc")
	if _, err := db.IncrBy("text", 1); !errors.Is(err, storage.ErrNotInteger) {
		t.Errorf("IncrBy(text) error = %v, want ErrNotInteger", err)
	}
	mustSet(t, db, "blank", "")
	if _, err := db.IncrBy("blank", 1); !errors.Is(err, storage.ErrNotInteger) {
		t.Errorf("IncrBy(blank) error = %v, want ErrNotInteger", err)
	}

	mustSet(t, db, "max", "9223372036854775807")
	if _, err := db.IncrBy("max", 1); !errors.Is(err, storage.ErrOverflow) {
		t.Errorf("IncrBy(max) error = %v, want ErrOverflow", err)
	}

	future := time.Now().Add(time.Hour)
	_, _ = db.Set("ttl", []byte("5"), storage.SetOptions{Expiry: &future})
	_, _ = db.IncrBy("ttl", 1)
	if ttl := db.TTL("ttl"); ttl <= 0 {
		t.Errorf("TTL() after IncrBy = %v, want kept", ttl)
	}
}

func TestMemoryStorageWrongType(t *testing.T) {
	_, db := openDB(t)

	if _, err := db.ZAdd("z", storage.ZAddOptions{}, storage.ZMember{Member: []byte("a"), Score: 1}); err != nil {
		t.Fatalf("ZAdd() error = %v", err)
	}
	mustSet(t, db, "s", "v")

	checks := []struct {
		name string
		err  error
	}{
		{"Get", func() error { _, _, err := db.Get("z"); return err }()},
		{"Append", func() error { _, err := db.Append("z", []byte("x")); return err }()},
		{"IncrBy", func() error { _, err := db.IncrBy("z", 1); return err }()},
		{"GetSet", func() error { _, _, err := db.GetSet("z", []byte("x")); return err }()},
		{"ZAdd", func() error {
			_, err := db.ZAdd("s", storage.ZAddOptions{}, storage.ZMember{Member: []byte("a")})
			return err
		}()},
		{"ZScore", func() error { _, _, err := db.ZScore("s", []byte("a")); return err }()},
		{"ZCard", func() error { _, err := db.ZCard("s"); return err }()},
	}
	for _, c := range checks {
		if !errors.Is(c.err, storage.ErrWrongType) {
			t.Errorf("%s error = %v, want ErrWrongType", c.name, c.err)
		}
	}

	// Set replaces a value of any type
	mustSet(t, db, "z", "now a string")
	if typ := db.Type("z"); typ != storage.ValueTypeString {
		t.Errorf("Type() = %v, want string", typ)
	}
}

func TestMemoryStorageDel(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "key1", "value1")
	mustSet(t, db, "key2", "value2")
	mustSet(t, db, "key3", "value3")

	if deleted := db.Del("key1", "key2", "nonexistent"); deleted != 2 {
		t.Errorf("Del() = %d, want 2", deleted)
	}
	if db.Exists("key1") != 0 || db.Exists("key2") != 0 {
		t.Error("Expected deleted keys to not exist")
	}
	if db.Exists("key3") != 1 {
		t.Error("Expected key3 to still exist")
	}
}

func TestMemoryStorageExists(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "key1", "value1")
	mustSet(t, db, "key2", "value2")

	if count := db.Exists("key1", "key2", "nonexistent", "key1"); count != 3 {
		t.Errorf("Exists() = %d, want 3", count)
	}
}

func TestMemoryStorageExpire(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "key1", "value1")

	if !db.Expire("key1", time.Now().Add(50*time.Millisecond)) {
		t.Fatal("Expire() = false, want true")
	}
	if db.Expire("nonexistent", time.Now().Add(time.Hour)) {
		t.Error("Expire() on a missing key = true")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := db.Get("key1"); ok {
		t.Error("Expected key to be expired")
	}

	mustSet(t, db, "key2", "value2")
	if !db.Expire("key2", time.Now().Add(-time.Second)) {
		t.Error("Expire() in the past = false, want true")
	}
	if db.Exists("key2") != 0 {
		t.Error("Expire() in the past kept the key")
	}
}

func TestMemoryStorageTTL(t *testing.T) {
	_, db := openDB(t)

	if ttl := db.TTL("nonexistent"); ttl != storage.TTLNoKey {
		t.Errorf("TTL() = %v, want %v", ttl, storage.TTLNoKey)
	}

	mustSet(t, db, "key1", "value1")
	if ttl := db.TTL("key1"); ttl != storage.TTLNoExpiry {
		t.Errorf("TTL() = %v, want %v", ttl, storage.TTLNoExpiry)
	}

	db.Expire("key1", time.Now().Add(time.Hour))
	if ttl := db.TTL("key1"); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() = %v, want about 1h", ttl)
	}

	if !db.Persist("key1") {
		t.Error("Persist() = false, want true")
	}
	if db.Persist("key1") {
		t.Error("Persist() on a persistent key = true")
	}
	if ttl := db.TTL("key1"); ttl != storage.TTLNoExpiry {
		t.Errorf("TTL() after Persist = %v, want %v", ttl, storage.TTLNoExpiry)
	}
}

func TestMemoryStorageKeys(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "user:1", "alice")
	mustSet(t, db, "user:2", "bob")
	mustSet(t, db, "session:abc", "data")

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*", []string{"session:abc", "user:1", "user:2"}},
		{"user:*", []string{"user:1", "user:2"}},
		{"user:?", []string{"user:1", "user:2"}},
		{"user:[1]", []string{"user:1"}},
		{"nomatch*", []string{}},
	}
	for _, tt := range tests {
		got := db.Keys(tt.pattern)
		slices.Sort(got)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Keys(%q) = %v, want %v", tt.pattern, got, tt.want)
		}
	}
}

func TestMemoryStorageScan(t *testing.T) {
	_, db := openDB(t)
	want := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("key:%02d", i)
		mustSet(t, db, key, "v")
		want = append(want, key)
	}

	var got []string
	cursor := int64(0)
	for iterations := 0; ; iterations++ {
		if iterations > 10 {
			t.Fatal("Scan() did not terminate")
		}
		next, keys := db.Scan(cursor, "", 10)
		got = append(got, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if !slices.Equal(got, want) {
		t.Errorf("Scan() keys = %v, want %v", got, want)
	}

	_, keys := db.Scan(0, "key:1*", 100)
	if len(keys) != 10 {
		t.Errorf("Scan(MATCH key:1*) returned %d keys, want 10", len(keys))
	}
}

func TestMemoryStorageType(t *testing.T) {
	_, db := openDB(t)
	mustSet(t, db, "s", "v")
	_, _ = db.ZAdd("z", storage.ZAddOptions{}, storage.ZMember{Member: []byte("m"), Score: 1})

	tests := []struct {
		key  string
		want string
	}{
		{"s", "string"},
		{"z", "zset"},
		{"missing", "none"},
	}
	for _, tt := range tests {
		if got := db.Type(tt.key).String(); got != tt.want {
			t.Errorf("Type(%q) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestMemoryStorageFlushAll(t *testing.T) {
	s, db := openDB(t)
	mustSet(t, db, "key1", "value1")
	other, _ := s.DB(3)
	mustSet(t, other, "key2", "value2")

	if err := s.FlushAll(); err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}
	if db.KeyCount() != 0 || other.KeyCount() != 0 {
		t.Error("Expected every database to be empty after FlushAll()")
	}
}

func TestMemoryStorageDatabases(t *testing.T) {
	s, db0 := openDB(t, storage.WithDatabases(4))

	if n := s.Databases(); n != 4 {
		t.Fatalf("Databases() = %d, want 4", n)
	}
	if _, err := s.DB(4); !errors.Is(err, storage.ErrInvalidDB) {
		t.Errorf("DB(4) error = %v, want ErrInvalidDB", err)
	}
	if _, err := s.DB(-1); !errors.Is(err, storage.ErrInvalidDB) {
		t.Errorf("DB(-1) error = %v, want ErrInvalidDB", err)
	}

	db1, _ := s.DB(1)
	mustSet(t, db0, "shared", "zero")
	mustSet(t, db1, "shared", "one")

	if v, _, _ := db0.Get("shared"); string(v) != "zero" {
		t.Errorf("db0 Get() = %s, want zero", v)
	}
	if v, _, _ := db1.Get("shared"); string(v) != "one" {
		t.Errorf("db1 Get() = %s, want one", v)
	}

	db1.Flush()
	if db0.Exists("shared") != 1 {
		t.Error("Flush() on db1 removed a key from db0")
	}

	expiry := time.Now().Add(time.Hour)
	_, _ = db1.Set("ttl", []byte("v"), storage.SetOptions{Expiry: &expiry})
	mustSet(t, db1, "plain", "v")

	info := s.DatabaseInfo()
	if len(info) != 2 {
		t.Fatalf("DatabaseInfo() has %d entries, want 2", len(info))
	}
	if info[1]["keys"] != int64(2) || info[1]["expires"] != int64(1) {
		t.Errorf("DatabaseInfo()[1] = %v, want keys=2 expires=1", info[1])
	}
}

func TestMemoryStorageInfo(t *testing.T) {
	s, db := openDB(t)
	mustSet(t, db, "key1", "value1")

	info := s.Info()
	for _, field := range []string{"keys", "memory_usage", "memory_limit", "maxmemory_policy", "databases", "expired_keys", "evicted_keys"} {
		if _, ok := info[field]; !ok {
			t.Errorf("Info() missing field %q", field)
		}
	}
	if info["keys"] != int64(1) {
		t.Errorf("Info()[keys] = %v, want 1", info["keys"])
	}
	if info["maxmemory_policy"] != "noeviction" {
		t.Errorf("Info()[maxmemory_policy] = %v, want noeviction", info["maxmemory_policy"])
	}
	if s.MemoryUsage() <= 0 {
		t.Error("MemoryUsage() = 0 with a stored key")
	}
}

func TestMemoryStorageMemoryLimit(t *testing.T) {
	s, db := openDB(t)
	s.SetMemoryLimit(1024)
	if got := s.GetMemoryLimit(); got != 1024 {
		t.Errorf("GetMemoryLimit() = %d, want 1024", got)
	}

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		_, err = db.Set(fmt.Sprintf("key%d", i), make([]byte, 64), storage.SetOptions{})
	}
	if !errors.Is(err, storage.ErrOutOfMemory) {
		t.Fatalf("Set() past the limit error = %v, want ErrOutOfMemory", err)
	}

	// Reads and deletes still work
	if _, _, err := db.Get("key0"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if db.Del("key0") != 1 {
		t.Error("Del() did not remove key0")
	}
}

func TestMemoryStorageEviction(t *testing.T) {
	s, db := openDB(t, storage.WithMemoryLimit(2048, policy.LRU{}))

	for i := 0; i < 200; i++ {
		if _, err := db.Set(fmt.Sprintf("key%d", i), make([]byte, 64), storage.SetOptions{}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if usage := s.MemoryUsage(); usage > 2048+256 {
		t.Errorf("MemoryUsage() = %d, want about the 2048 limit", usage)
	}
	if n := db.KeyCount(); n >= 200 {
		t.Errorf("KeyCount() = %d, want evictions", n)
	}
	if evicted := s.Info()["evicted_keys"].(int64); evicted == 0 {
		t.Error("Info()[evicted_keys] = 0, want evictions")
	}
	if db.Exists("key199") != 1 {
		t.Error("Expected the most recent key to survive")
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events  []string
}

func (o *recordingObserver) record(event, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event+":"+key)
}

func (o *recordingObserver) OnKeySet(key string)     { o.record("set", key) }
func (o *recordingObserver) OnKeyDeleted(key string) { o.record("del", key) }
func (o *recordingObserver) OnKeyExpired(key string) { o.record("expired", key) }
func (o *recordingObserver) OnKeyEvicted(key string) { o.record("evicted", key) }

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.events)
}

func TestMemoryStorageObserver(t *testing.T) {
	obs := &recordingObserver{}
	_, db := openDB(t, storage.WithObserver(obs))

	mustSet(t, db, "a", "1")
	db.Del("a")
	past := time.Now().Add(-time.Second)
	_, _ = db.Set("b", []byte("1"), storage.SetOptions{Expiry: &past})
	db.Exists("b")

	want := []string{"set:a", "del:a", "set:b", "expired:b"}
	if got := obs.snapshot(); !slices.Equal(got, want) {
		t.Errorf("observer events = %v, want %v", got, want)
	}
}

func TestMemoryStorageCleanupConfig(t *testing.T) {
	s, _ := openDB(t)

	config := s.GetCleanupConfig()
	if config != storage.CleanupConfigDefault {
		t.Errorf("GetCleanupConfig() = %+v, want defaults", config)
	}

	newConfig := storage.CleanupConfig{
		SampleSize:       50,
		MaxRounds:        8,
		BatchSize:        20,
		ExpiredThreshold: 0.5,
	}
	s.SetCleanupConfig(newConfig)
	if got := s.GetCleanupConfig(); got != newConfig {
		t.Errorf("SetCleanupConfig() config mismatch: got %+v, want %+v", got, newConfig)
	}

	tests := []struct {
		name    string
		config  storage.CleanupConfig
		wantErr bool
	}{
		{"default", storage.CleanupConfigDefault, false},
		{"low latency", storage.CleanupConfigLowLatency, false},
		{"aggressive", storage.CleanupConfigAggressive, false},
		{"zero sample", storage.CleanupConfig{MaxRounds: 1, BatchSize: 1}, true},
		{"bad threshold", storage.CleanupConfig{SampleSize: 1, MaxRounds: 1, BatchSize: 1, ExpiredThreshold: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStorageCleanupReclaims(t *testing.T) {
	s, db := openDB(t, storage.WithCleanupInterval(10*time.Millisecond), storage.WithShardCount(4))

	expiry := time.Now().Add(20 * time.Millisecond)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("temp:%d", i)
		if _, err := db.Set(key, []byte("v"), storage.SetOptions{Expiry: &expiry}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	mustSet(t, db, "keep", "v")

	deadline := time.Now().Add(2 * time.Second)
	for db.KeyCount() > 1 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if n := db.KeyCount(); n != 1 {
		t.Errorf("KeyCount() after cleanup = %d, want 1", n)
	}
	if v, ok, _ := db.Get("keep"); !ok || string(v) != "v" {
		t.Error("cleanup removed a key without expiry")
	}
	if expired := s.Info()["expired_keys"].(int64); expired != 200 {
		t.Errorf("Info()[expired_keys] = %d, want 200", expired)
	}
}

func TestMemoryStorageCloseIdempotent(t *testing.T) {
	s := storage.NewMemory()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func BenchmarkMemoryStorageGet(b *testing.B) {
	s := storage.NewMemory()
	defer s.Close()
	db, _ := s.DB(0)
	_, _ = db.Set("key", []byte("value"), storage.SetOptions{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = db.Get("key")
	}
}

func BenchmarkMemoryStorageSet(b *testing.B) {
	s := storage.NewMemory()
	defer s.Close()
	db, _ := s.DB(0)
	value := []byte("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = db.Set(fmt.Sprintf("key%d", i%1000), value, storage.SetOptions{})
	}
}
