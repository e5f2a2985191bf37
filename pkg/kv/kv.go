// Package kv provides the key-value store behind the profile and session
// stores. Keys are hierarchical paths represented as string slices
// (e.g. ["profile", "u-17"] or ["session", "s1", "seg", "00000000000000000003"])
// and encoded with a configurable separator (default '/').
//
// Two implementations are provided: a BadgerDB-backed store for production
// and an in-memory store for tests. Both guarantee lexicographic iteration
// order by encoded key, which the session store relies on for sequence
// ordering.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path of string segments. Segments must not contain
// the configured separator character.
type Key []string

// String returns the key joined with '/' for display and debugging.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Child returns a new Key with extra segments appended.
func (k Key) Child(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the key-value store interface.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over entries whose key starts with the given prefix,
	// in lexicographic order of the encoded key. An empty prefix lists
	// the whole store.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// DeletePrefix atomically removes every key under the given prefix.
	DeletePrefix(ctx context.Context, prefix Key) error

	// Close releases resources held by the store.
	Close() error
}

// DefaultSeparator is the byte used to join key segments when encoding.
const DefaultSeparator byte = '/'

// Options configures key encoding.
type Options struct {
	// Separator joins key segments in the encoded form. '/' if zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	s := o.sep()
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, s)
		}
		buf = append(buf, seg...)
	}
	return buf
}

func (o *Options) decode(b []byte) Key {
	parts := strings.Split(string(b), string(o.sep()))
	return Key(parts)
}

// prefixBytes encodes a prefix for iteration. A trailing separator is
// appended so the prefix ["a","b"] does not match the key ["a","bc"].
func (o *Options) prefixBytes(prefix Key) []byte {
	p := o.encode(prefix)
	if len(p) > 0 {
		p = append(p, o.sep())
	}
	return p
}
