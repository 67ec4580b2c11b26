// Package buffer provides Buffer, the binary-safe growable byte sequence
// used to represent every string value held by the keyspace.
//
// A Buffer is exclusively owned by its holder. Every constructor copies its
// source, and Dup produces an independent copy rather than an alias:
//
//	b := buffer.New("aahello, world")
//	b.Range(2, -1)    // "hello, world"
//	t := b.Trim("hd") // "ello, worl"; b is unchanged
//
// Ranges use signed indices. Negative values count back from the end, with
// -1 meaning the last byte. Out-of-range values are normalised rather than
// rejected, so no operation in this package returns an error.
//
// Buffers are not safe for concurrent mutation.
package buffer
