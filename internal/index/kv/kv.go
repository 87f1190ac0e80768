// Package kv defines the navigable key/value contract every index part is
// read through, plus an in-memory store and helpers shared by the on-disk
// and database-backed stores.
package kv

import (
	"bytes"
	"encoding/binary"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// KeyIterator walks the entries of a store in strictly increasing byte order
// of their keys. Positioning never moves backwards. A fresh iterator is not
// positioned: NextKey lands on the first key, SkipToKey on the first key at
// or after its target. Accessors fail with ErrNotPositioned until then, and
// again once the iterator is exhausted.
type KeyIterator interface {
	// SkipToKey advances to the first key >= key and reports whether it is
	// an exact match. A target at or before the current key does not move.
	SkipToKey(key []byte) (bool, error)
	// NextKey advances to the following key; false once exhausted.
	NextKey() (bool, error)
	Key() (string, error)
	KeyBytes() ([]byte, error)
	// StringValue renders the current value for display.
	StringValue() (string, error)
	// ValueStream returns a reader over the current value.
	ValueStream() (io.Reader, error)
	IsDone() bool
}

// Store is a read-only sorted collection of entries. Iterators obtained from
// one store are independent and may be used from different goroutines.
type Store interface {
	Iterator() (KeyIterator, error)
	Len() int
	Close() error
}

// Entry is one key/value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// CheckSorted verifies entries are in strictly increasing key order.
func CheckSorted(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			return apperrors.Invalid("entry %d key %q does not follow %q", i, entries[i].Key, entries[i-1].Key)
		}
	}
	return nil
}

// EncodeDocumentKey renders a document id as a 4-byte big-endian key, so
// byte order of keys equals numeric order of ids.
func EncodeDocumentKey(doc int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(doc))
	return key
}

// DecodeDocumentKey is the inverse of EncodeDocumentKey.
func DecodeDocumentKey(key []byte) (int, error) {
	if len(key) != 4 {
		return 0, apperrors.Invalid("document key must be 4 bytes, got %d", len(key))
	}
	return int(binary.BigEndian.Uint32(key)), nil
}
