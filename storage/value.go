package storage

import (
	"sync/atomic"
	"time"

	"github.com/msredis/msredis/buffer"
)

// ValueType represents the Redis data type
type ValueType int

const (
	ValueTypeNone ValueType = iota
	ValueTypeString
	ValueTypeZSet
)

// String returns the Redis-compatible type name
func (vt ValueType) String() string {
	switch vt {
	case ValueTypeString:
		return "string"
	case ValueTypeZSet:
		return "zset"
	default:
		return "none"
	}
}

// Value represents a stored value with metadata. Data is a *buffer.Buffer
// for strings and a *ZSet for sorted sets.
type Value struct {
	Type   ValueType
	Data   interface{}
	Expiry *time.Time

	// lastAccess is read by eviction sampling under a shared lock
	lastAccess atomic.Int64
}

func newStringValue(b *buffer.Buffer, expiry *time.Time) *Value {
	v := &Value{Type: ValueTypeString, Data: b, Expiry: expiry}
	v.touch()
	return v
}

func newZSetValue(z *ZSet) *Value {
	v := &Value{Type: ValueTypeZSet, Data: z}
	v.touch()
	return v
}

// IsExpired returns true if the value has expired
func (v *Value) IsExpired() bool {
	return v.Expiry != nil && !time.Now().Before(*v.Expiry)
}

func (v *Value) touch() {
	v.lastAccess.Store(time.Now().UnixNano())
}

// Buffer returns the string payload or ErrWrongType
func (v *Value) Buffer() (*buffer.Buffer, error) {
	b, ok := v.Data.(*buffer.Buffer)
	if v.Type != ValueTypeString || !ok {
		return nil, ErrWrongType
	}
	return b, nil
}

// ZSet returns the sorted set payload or ErrWrongType
func (v *Value) ZSet() (*ZSet, error) {
	z, ok := v.Data.(*ZSet)
	if v.Type != ValueTypeZSet || !ok {
		return nil, ErrWrongType
	}
	return z, nil
}
