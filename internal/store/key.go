// Package store implements the engine's persistence layer: an ordered
// key-value abstraction with fixed-width big-endian tuple keys, so numeric
// key ordering matches lexicographic byte ordering (§6: "numeric keys use
// fixed-width big-endian encoding to guarantee lexicographic ordering").
//
// Two backends satisfy the same Store interface: an in-memory store for
// tests and single-process deployments, and a Postgres-backed store for
// durable history (closed positions, copy-trading queues).
package store

import (
	"encoding/binary"
	"time"
)

// Key is an opaque, ordered byte-string key. Keys built from the same tuple
// shape sort the same way their decoded components would.
type Key []byte

// Uint64Key encodes v as an 8-byte big-endian component.
func Uint64Key(v uint64) Key {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// TimestampKey encodes a unix-nanosecond timestamp as an 8-byte big-endian
// component; monotonic timestamps therefore sort chronologically.
func TimestampKey(t time.Time) Key {
	return Uint64Key(uint64(t.UnixNano()))
}

// Bytes32Key wraps a 32-byte fixed-width component (e.g. a Dec.Bytes32()
// price magnitude) as a key component.
func Bytes32Key(b [32]byte) Key {
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// StringKey encodes a variable-length string component, length-prefixed so
// it can be safely concatenated with further components without ambiguity.
func StringKey(s string) Key {
	out := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(out, uint32(len(s)))
	copy(out[4:], s)
	return out
}

// Tuple concatenates key components into a single ordered key, matching the
// tuple-key convention used throughout the persisted layout (e.g.
// (price_key, position_id) in the trigger maps, (owner, (time, id)) in
// closed-position history).
func Tuple(parts ...Key) Key {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(Key, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PrefixUpperBound returns the smallest key greater than every key sharing
// prefix, for use as an exclusive range end in a prefix scan. It returns nil
// if prefix is all 0xff bytes (the range is unbounded above).
func PrefixUpperBound(prefix Key) Key {
	out := make(Key, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
