package kv

import (
	"bytes"
	"io"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Table is random access to a sorted entry list whose keys are resident and
// whose values may be fetched lazily.
type Table interface {
	Len() int
	KeyAt(i int) []byte
	ValueAt(i int) ([]byte, error)
}

// SortedIterator implements KeyIterator over a Table.
type SortedIterator struct {
	table Table
	pos   int // -1 before positioning, Len() once exhausted

	value  []byte
	loaded bool
}

// NewSortedIterator returns an unpositioned iterator, or an exhausted one when
// the table is empty.
func NewSortedIterator(t Table) *SortedIterator {
	pos := -1
	if t.Len() == 0 {
		pos = 0
	}
	return &SortedIterator{table: t, pos: pos}
}

func (it *SortedIterator) IsDone() bool {
	return it.pos >= it.table.Len()
}

func (it *SortedIterator) positioned() bool {
	return it.pos >= 0 && it.pos < it.table.Len()
}

func (it *SortedIterator) moveTo(pos int) {
	if pos != it.pos {
		it.pos = pos
		it.value = nil
		it.loaded = false
	}
}

func (it *SortedIterator) SkipToKey(key []byte) (bool, error) {
	if it.IsDone() {
		return false, nil
	}
	if it.positioned() && bytes.Compare(key, it.table.KeyAt(it.pos)) <= 0 {
		return bytes.Equal(key, it.table.KeyAt(it.pos)), nil
	}
	start := it.pos
	if start < 0 {
		start = 0
	}
	n := it.table.Len()
	offset := sort.Search(n-start, func(i int) bool {
		return bytes.Compare(it.table.KeyAt(start+i), key) >= 0
	})
	it.moveTo(start + offset)
	if it.IsDone() {
		return false, nil
	}
	return bytes.Equal(it.table.KeyAt(it.pos), key), nil
}

func (it *SortedIterator) NextKey() (bool, error) {
	if it.IsDone() {
		return false, nil
	}
	it.moveTo(it.pos + 1)
	return !it.IsDone(), nil
}

func (it *SortedIterator) KeyBytes() ([]byte, error) {
	if !it.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	return it.table.KeyAt(it.pos), nil
}

func (it *SortedIterator) Key() (string, error) {
	key, err := it.KeyBytes()
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func (it *SortedIterator) current() ([]byte, error) {
	if !it.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	if !it.loaded {
		v, err := it.table.ValueAt(it.pos)
		if err != nil {
			return nil, apperrors.IO("reading value", err)
		}
		it.value = v
		it.loaded = true
	}
	return it.value, nil
}

func (it *SortedIterator) StringValue() (string, error) {
	v, err := it.current()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (it *SortedIterator) ValueStream() (io.Reader, error) {
	v, err := it.current()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(v), nil
}
