package sparse

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Iterator decodes the posting list of the key its KeyIterator is positioned
// on, one entry at a time. It can also walk every record of every key for
// dumps.
type Iterator struct {
	keys   kv.KeyIterator
	stream *bufio.Reader

	count           int
	index           int
	currentDocument int
	currentScore    float64
}

var (
	_ iterator.Navigator = (*Iterator)(nil)
	_ iterator.Scorer    = (*Iterator)(nil)
)

// NewIterator loads the list at the current position of keys. A nil or
// exhausted keys yields an empty iterator.
func NewIterator(keys kv.KeyIterator) (*Iterator, error) {
	it := &Iterator{keys: keys}
	if err := it.load(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) load() error {
	it.count, it.index = 0, 0
	it.currentDocument, it.currentScore = 0, 0
	it.stream = nil
	if it.keys == nil || it.keys.IsDone() {
		return nil
	}
	value, err := it.keys.ValueStream()
	if err != nil {
		return err
	}
	it.stream = bufio.NewReader(value)
	var header [4]byte
	if _, err := io.ReadFull(it.stream, header[:]); err != nil {
		return it.decodeError("reading posting count", err)
	}
	it.count = int(binary.BigEndian.Uint32(header[:]))
	it.index = -1
	if it.count > 0 {
		return it.read()
	}
	it.index = 0
	return nil
}

func (it *Iterator) read() error {
	it.index++
	if it.index >= it.count {
		return nil
	}
	gap, err := binary.ReadUvarint(it.stream)
	if err != nil {
		return it.decodeError("reading document gap", err)
	}
	var score [4]byte
	if _, err := io.ReadFull(it.stream, score[:]); err != nil {
		return it.decodeError("reading score", err)
	}
	it.currentDocument += int(gap)
	it.currentScore = float64(math.Float32frombits(binary.BigEndian.Uint32(score[:])))
	return nil
}

func (it *Iterator) decodeError(op string, err error) error {
	key, _ := it.keys.Key()
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return apperrors.IO(op+" of "+strconv.Quote(key), err)
}

func (it *Iterator) Reset() error {
	return it.load()
}

// SkipTo moves the key iterator to key. On an exact match the list of key is
// loaded; otherwise the current list is left as it is.
func (it *Iterator) SkipTo(key []byte) (bool, error) {
	if it.keys == nil {
		return false, nil
	}
	found, err := it.keys.SkipToKey(key)
	if err != nil || !found {
		return false, err
	}
	return true, it.load()
}

// NextTerm loads the list of the following key.
func (it *Iterator) NextTerm() (bool, error) {
	if it.keys == nil {
		return false, nil
	}
	ok, err := it.keys.NextKey()
	if err != nil || !ok {
		return false, err
	}
	return true, it.load()
}

// NextRecord advances to the next posting, crossing into following keys when
// the current list is exhausted. Empty lists are skipped.
func (it *Iterator) NextRecord() (bool, error) {
	if err := it.read(); err != nil {
		return false, err
	}
	for it.IsDone() {
		ok, err := it.NextTerm()
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// RecordString renders the current record as "term,document,score".
func (it *Iterator) RecordString() string {
	key, _ := it.Key()
	return key + "," + strconv.Itoa(it.currentDocument) + "," +
		strconv.FormatFloat(it.currentScore, 'g', -1, 32)
}

func (it *Iterator) Key() (string, error) {
	if it.keys == nil {
		return "", apperrors.ErrNotPositioned
	}
	return it.keys.Key()
}

func (it *Iterator) KeyBytes() ([]byte, error) {
	if it.keys == nil {
		return nil, apperrors.ErrNotPositioned
	}
	return it.keys.KeyBytes()
}

func (it *Iterator) CurrentCandidate() int {
	if it.IsDone() {
		return iterator.Done
	}
	return it.currentDocument
}

func (it *Iterator) IsDone() bool {
	return it.index >= it.count
}

func (it *Iterator) HasMatch(doc int) bool {
	return !it.IsDone() && it.currentDocument == doc
}

func (it *Iterator) MoveTo(doc int) error {
	for !it.IsDone() && doc > it.currentDocument {
		if err := it.read(); err != nil {
			return err
		}
	}
	return nil
}

func (it *Iterator) MovePast(doc int) error {
	for !it.IsDone() && doc >= it.currentDocument {
		if err := it.read(); err != nil {
			return err
		}
	}
	return nil
}

// SkipToDocument moves to doc and reports whether it is in the list.
func (it *Iterator) SkipToDocument(doc int) (bool, error) {
	if err := it.MoveTo(doc); err != nil {
		return false, err
	}
	return it.HasMatch(doc), nil
}

// Score is the stored score at doc, or NoScore when the list is not
// positioned on doc.
func (it *Iterator) Score(doc, length int) float64 {
	if it.HasMatch(doc) {
		return it.currentScore
	}
	return iterator.NoScore
}

func (it *Iterator) TotalCandidates() int64 {
	return int64(it.count)
}
