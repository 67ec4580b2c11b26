package buffer

import (
	"bytes"
)

// Buffer is a binary-safe byte sequence. The zero value is an empty buffer
// ready to use.
type Buffer struct {
	buf []byte
}

// New creates a buffer holding a copy of s.
func New(s string) *Buffer {
	return &Buffer{buf: []byte(s)}
}

// FromBytes creates a buffer holding a copy of p.
func FromBytes(p []byte) *Buffer {
	b := &Buffer{buf: make([]byte, len(p))}
	copy(b.buf, p)
	return b
}

// NewFrom creates a buffer holding a copy of other's content.
func NewFrom(other *Buffer) *Buffer {
	if other == nil {
		return &Buffer{}
	}
	return FromBytes(other.buf)
}

// Dup returns an independent copy of b.
func (b *Buffer) Dup() *Buffer {
	return NewFrom(b)
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the number of bytes reserved.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Bytes returns the content. The slice aliases the buffer and is only valid
// until the next mutation; callers that retain it must copy.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// String returns the content as a string.
func (b *Buffer) String() string {
	return string(b.buf)
}

// GrowZero extends the buffer with zero bytes so that its length is exactly
// n. It never truncates.
func (b *Buffer) GrowZero(n int) {
	cur := len(b.buf)
	if n <= cur {
		return
	}
	if n > cap(b.buf) {
		grown := make([]byte, cur, growCap(cap(b.buf), n))
		copy(grown, b.buf)
		b.buf = grown
	}
	b.buf = b.buf[:n]
	clear(b.buf[cur:n])
}

// Cat appends a copy of other's content.
func (b *Buffer) Cat(other *Buffer) {
	if other == nil {
		return
	}
	b.CatBytes(other.buf)
}

// CatBytes appends a copy of p.
func (b *Buffer) CatBytes(p []byte) {
	b.buf = append(b.buf, p...)
}

// CatString appends s.
func (b *Buffer) CatString(s string) {
	b.buf = append(b.buf, s...)
}

// Range keeps only the bytes in [start, end) after normalisation, in place.
//
// Negative start counts back from the end and clamps at zero. Negative end
// is taken relative to one past the last byte, so -1 keeps the final byte. A
// start beyond the content resets to zero and end is clamped to the length.
// When start >= end the buffer becomes empty.
func (b *Buffer) Range(start, end int64) {
	n := int64(len(b.buf))
	if n == 0 {
		return
	}
	if start < 0 {
		start = max(n+start, 0)
	}
	if end < 0 {
		end = max(n+end+1, 0)
	}
	if start >= n {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		b.buf = b.buf[:0]
		return
	}
	if start > 0 {
		copy(b.buf, b.buf[start:end])
	}
	b.buf = b.buf[:end-start]
}

// Clear empties the buffer, keeping its capacity.
func (b *Buffer) Clear() {
	b.buf = b.buf[:0]
}

// Trim returns a new buffer with every leading and trailing byte found in
// cset removed. The receiver is not modified.
func (b *Buffer) Trim(cset string) *Buffer {
	if len(b.buf) == 0 {
		return &Buffer{}
	}
	var set [256]bool
	for i := 0; i < len(cset); i++ {
		set[cset[i]] = true
	}

	lo, hi := 0, len(b.buf)
	for lo < hi && set[b.buf[lo]] {
		lo++
	}
	for hi > lo && set[b.buf[hi-1]] {
		hi--
	}
	return FromBytes(b.buf[lo:hi])
}

// SetRange overwrites the content starting at offset with p, zero-filling
// any gap between the current end and offset.
func (b *Buffer) SetRange(offset int, p []byte) {
	if offset < 0 || len(p) == 0 {
		return
	}
	b.GrowZero(offset + len(p))
	copy(b.buf[offset:], p)
}

// Equal reports whether b and other hold the same bytes.
func (b *Buffer) Equal(other *Buffer) bool {
	return bytes.Equal(b.buf, other.buf)
}

// Compare compares b and other lexicographically.
func (b *Buffer) Compare(other *Buffer) int {
	return bytes.Compare(b.buf, other.buf)
}

func growCap(old, need int) int {
	c := old * 2
	if c < need {
		c = need
	}
	return c
}
