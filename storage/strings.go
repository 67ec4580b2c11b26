package storage

import (
	"bytes"
	"math"
	"strconv"
	"time"

	"github.com/msredis/msredis/buffer"
)

// Get returns a copy of the string stored at key
func (k *keyspace) Get(key string) ([]byte, bool, error) {
	var result []byte
	err := k.view(key, func(v *Value) error {
		if v == nil {
			return nil
		}
		b, err := v.Buffer()
		if err != nil {
			return err
		}
		result = bytes.Clone(b.Bytes())
		if result == nil {
			result = []byte{}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, result != nil, nil
}

// Set stores a string value and reports whether it was written
func (k *keyspace) Set(key string, value []byte, opts SetOptions) (bool, error) {
	written := false
	err := k.write(key, func(sh *shard, v *Value) error {
		if (opts.NX && v != nil) || (opts.XX && v == nil) {
			return nil
		}
		expiry := opts.Expiry
		if opts.KeepTTL && v != nil {
			expiry = v.Expiry
		}
		sh.data[key] = newStringValue(buffer.FromBytes(value), expiry)
		written = true
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
		return nil
	})
	return written, err
}

// GetSet stores value and returns the previous string, clearing any TTL
func (k *keyspace) GetSet(key string, value []byte) ([]byte, bool, error) {
	var old []byte
	err := k.write(key, func(sh *shard, v *Value) error {
		if v != nil {
			b, err := v.Buffer()
			if err != nil {
				return err
			}
			old = bytes.Clone(b.Bytes())
			if old == nil {
				old = []byte{}
			}
		}
		sh.data[key] = newStringValue(buffer.FromBytes(value), nil)
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return old, old != nil, nil
}

// mutateString runs fn on the string at key, creating an empty one when
// create is set and the key is missing.
func (k *keyspace) mutateString(key string, create bool, fn func(b *buffer.Buffer) error) error {
	return k.write(key, func(sh *shard, v *Value) error {
		if v == nil {
			if !create {
				return nil
			}
			v = newStringValue(&buffer.Buffer{}, nil)
			sh.data[key] = v
		}
		b, err := v.Buffer()
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
		return nil
	})
}

// Append appends value to the string at key and returns the new length
func (k *keyspace) Append(key string, value []byte) (int64, error) {
	var n int64
	err := k.mutateString(key, true, func(b *buffer.Buffer) error {
		if b.Len()+len(value) > maxStringSize {
			return ErrOffsetOutOfRange
		}
		b.CatBytes(value)
		n = int64(b.Len())
		return nil
	})
	return n, err
}

// StrLen returns the length of the string at key
func (k *keyspace) StrLen(key string) (int64, error) {
	var n int64
	err := k.view(key, func(v *Value) error {
		if v == nil {
			return nil
		}
		b, err := v.Buffer()
		if err != nil {
			return err
		}
		n = int64(b.Len())
		return nil
	})
	return n, err
}

// GetRange returns the substring between the inclusive offsets start and
// end. Negative offsets count from the end of the string.
func (k *keyspace) GetRange(key string, start, end int64) ([]byte, error) {
	result := []byte{}
	err := k.view(key, func(v *Value) error {
		if v == nil {
			return nil
		}
		b, err := v.Buffer()
		if err != nil {
			return err
		}

		n := int64(b.Len())
		if start < 0 {
			start = max(n+start, 0)
		}
		if end < 0 {
			end = max(n+end, 0)
		}
		end = min(end, n-1)
		if n == 0 || start > end {
			return nil
		}

		sub := b.Dup()
		sub.Range(start, end+1)
		result = sub.Bytes()
		return nil
	})
	return result, err
}

// SetRange overwrites the string at key starting at offset, zero padding
// when the string is shorter, and returns the new length
func (k *keyspace) SetRange(key string, offset int64, value []byte) (int64, error) {
	if offset < 0 || offset+int64(len(value)) > maxStringSize {
		return 0, ErrOffsetOutOfRange
	}
	if len(value) == 0 {
		return k.StrLen(key)
	}

	var n int64
	err := k.mutateString(key, true, func(b *buffer.Buffer) error {
		b.SetRange(int(offset), value)
		n = int64(b.Len())
		return nil
	})
	return n, err
}

// IncrBy adds delta to the integer stored at key and returns the result.
// A missing key counts as zero.
func (k *keyspace) IncrBy(key string, delta int64) (int64, error) {
	var result int64
	err := k.write(key, func(sh *shard, v *Value) error {
		cur := int64(0)
		if v != nil {
			b, err := v.Buffer()
			if err != nil {
				return err
			}
			n, err := strconv.ParseInt(b.String(), 10, 64)
			if err != nil {
				return ErrNotInteger
			}
			cur = n
		}
		if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
			return ErrOverflow
		}
		result = cur + delta

		var expiry *time.Time
		if v != nil {
			expiry = v.Expiry
		}
		sh.data[key] = newStringValue(buffer.New(strconv.FormatInt(result, 10)), expiry)
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
		return nil
	})
	return result, err
}
