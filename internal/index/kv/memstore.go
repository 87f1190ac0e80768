package kv

import (
	"bytes"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// MemStore keeps all entries in memory. It backs tests and small parts built
// on the fly.
type MemStore struct {
	entries []Entry
}

// NewMemStore copies entries, which must already be in strictly increasing
// key order.
func NewMemStore(entries []Entry) (*MemStore, error) {
	if err := CheckSorted(entries); err != nil {
		return nil, err
	}
	copied := make([]Entry, len(entries))
	for i, e := range entries {
		copied[i] = Entry{Key: bytes.Clone(e.Key), Value: bytes.Clone(e.Value)}
	}
	return &MemStore{entries: copied}, nil
}

func (s *MemStore) Iterator() (KeyIterator, error) {
	return NewSortedIterator(memTable(s.entries)), nil
}

func (s *MemStore) Len() int { return len(s.entries) }

func (s *MemStore) Close() error { return nil }

type memTable []Entry

func (t memTable) Len() int                      { return len(t) }
func (t memTable) KeyAt(i int) []byte            { return t[i].Key }
func (t memTable) ValueAt(i int) ([]byte, error) { return t[i].Value, nil }

// RangeIterator restricts a KeyIterator to keys in [start, end). A nil start
// means the beginning of the store, a nil end means its end.
type RangeIterator struct {
	inner   KeyIterator
	start   []byte
	end     []byte
	started bool
}

func NewRangeIterator(inner KeyIterator, start, end []byte) *RangeIterator {
	return &RangeIterator{inner: inner, start: start, end: end}
}

func (r *RangeIterator) pastEnd() bool {
	if r.inner.IsDone() {
		return true
	}
	if r.end == nil {
		return false
	}
	key, err := r.inner.KeyBytes()
	if err != nil {
		return false
	}
	return bytes.Compare(key, r.end) >= 0
}

func (r *RangeIterator) begin() (bool, error) {
	r.started = true
	if r.start == nil {
		return r.inner.NextKey()
	}
	return r.inner.SkipToKey(r.start)
}

func (r *RangeIterator) SkipToKey(key []byte) (bool, error) {
	if !r.started {
		if _, err := r.begin(); err != nil {
			return false, err
		}
	}
	if r.start != nil && bytes.Compare(key, r.start) < 0 {
		key = r.start
	}
	found, err := r.inner.SkipToKey(key)
	if err != nil || r.pastEnd() {
		return false, err
	}
	return found, nil
}

func (r *RangeIterator) NextKey() (bool, error) {
	var err error
	if !r.started {
		_, err = r.begin()
	} else if !r.pastEnd() {
		_, err = r.inner.NextKey()
	}
	if err != nil {
		return false, err
	}
	return !r.pastEnd(), nil
}

func (r *RangeIterator) IsDone() bool {
	return r.started && r.pastEnd()
}

func (r *RangeIterator) positioned() bool {
	return r.started && !r.pastEnd()
}

func (r *RangeIterator) KeyBytes() ([]byte, error) {
	if !r.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	return r.inner.KeyBytes()
}

func (r *RangeIterator) Key() (string, error) {
	if !r.positioned() {
		return "", apperrors.ErrNotPositioned
	}
	return r.inner.Key()
}

func (r *RangeIterator) StringValue() (string, error) {
	if !r.positioned() {
		return "", apperrors.ErrNotPositioned
	}
	return r.inner.StringValue()
}

func (r *RangeIterator) ValueStream() (io.Reader, error) {
	if !r.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	return r.inner.ValueStream()
}
