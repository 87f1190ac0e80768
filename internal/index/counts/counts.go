// Package counts stores per-term occurrence counts and serves them as
// counting iterators that also know their list totals.
//
// Value layout per term:
//
//	count:uint32 big-endian
//	totalOccurrences:uint64 big-endian
//	count x { gap:uvarint, occurrences:uvarint }
package counts

import (
	"bufio"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Operator is served by count parts: #counts:<term>().
const Operator = "counts"

// Posting is one document of a term's list with its occurrence count.
type Posting struct {
	Document    int
	Occurrences int
}

// Encode serialises postings in strictly increasing document order. Each
// posting must occur at least once.
func Encode(postings []Posting) ([]byte, error) {
	var total uint64
	body := make([]byte, 0, len(postings)*3)
	prev := 0
	for i, p := range postings {
		if p.Document < 0 || (i > 0 && p.Document <= prev) {
			return nil, apperrors.Invalid("posting %d document %d does not follow %d", i, p.Document, prev)
		}
		if p.Occurrences <= 0 {
			return nil, apperrors.Invalid("posting %d has %d occurrences", i, p.Occurrences)
		}
		body = binary.AppendUvarint(body, uint64(p.Document-prev))
		body = binary.AppendUvarint(body, uint64(p.Occurrences))
		total += uint64(p.Occurrences)
		prev = p.Document
	}
	buf := make([]byte, 12, 12+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(postings)))
	binary.BigEndian.PutUint64(buf[4:12], total)
	return append(buf, body...), nil
}

// Iterator decodes one term's counts lazily.
type Iterator struct {
	key    string
	stream *bufio.Reader

	count            int
	totalOccurrences int64
	index            int
	currentDocument  int
	currentCount     int

	value func() (io.Reader, error)
}

var (
	_ iterator.Navigator = (*Iterator)(nil)
	_ iterator.Counter   = (*Iterator)(nil)
	_ iterator.Aggregate = (*Iterator)(nil)
)

// NewIterator decodes the value returned by open. A nil open is an empty
// list.
func NewIterator(key string, open func() (io.Reader, error)) (*Iterator, error) {
	it := &Iterator{key: key, value: open}
	if err := it.Reset(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) Reset() error {
	it.count, it.totalOccurrences, it.index = 0, 0, 0
	it.currentDocument, it.currentCount = 0, 0
	if it.value == nil {
		return nil
	}
	r, err := it.value()
	if err != nil {
		return err
	}
	it.stream = bufio.NewReader(r)
	var header [12]byte
	if _, err := io.ReadFull(it.stream, header[:]); err != nil {
		return it.decodeError("reading list header", err)
	}
	it.count = int(binary.BigEndian.Uint32(header[0:4]))
	it.totalOccurrences = int64(binary.BigEndian.Uint64(header[4:12]))
	it.index = -1
	return it.read()
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
	occurrences, err := binary.ReadUvarint(it.stream)
	if err != nil {
		return it.decodeError("reading occurrences", err)
	}
	it.currentDocument += int(gap)
	it.currentCount = int(occurrences)
	return nil
}

func (it *Iterator) decodeError(op string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return apperrors.IO(op+" of "+strconv.Quote(it.key), err)
}

func (it *Iterator) CurrentCandidate() int {
	if it.IsDone() {
		return iterator.Done
	}
	return it.currentDocument
}

func (it *Iterator) IsDone() bool { return it.index >= it.count }

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
	return it.MoveTo(doc + 1)
}

// Count is the number of occurrences in the current document, 0 when done.
func (it *Iterator) Count() int {
	if it.IsDone() {
		return 0
	}
	return it.currentCount
}

func (it *Iterator) TotalCandidates() int64  { return int64(it.count) }
func (it *Iterator) TotalEntries() int64     { return int64(it.count) }
func (it *Iterator) TotalOccurrences() int64 { return it.totalOccurrences }

// Reader serves count lists out of a key/value store keyed by term.
type Reader struct {
	store kv.Store
}

func NewReader(store kv.Store) *Reader {
	return &Reader{store: store}
}

// Counts returns term's iterator; an unknown term yields an empty one.
func (r *Reader) Counts(term string) (*Iterator, error) {
	keys, err := r.store.Iterator()
	if err != nil {
		return nil, err
	}
	found, err := keys.SkipToKey([]byte(term))
	if err != nil {
		return nil, err
	}
	if !found {
		return NewIterator(term, nil)
	}
	return NewIterator(term, keys.ValueStream)
}

func (r *Reader) NodeTypes() map[string]string {
	return map[string]string{Operator: "counter"}
}

func (r *Reader) Iterator(node *query.Node) (*iterator.Iterator, error) {
	if node.Operator() != Operator {
		return nil, apperrors.Unsupported(node.Operator())
	}
	it, err := r.Counts(node.DefaultParameter())
	if err != nil {
		return nil, err
	}
	return iterator.New(it), nil
}

func (r *Reader) KeyIterator() (kv.KeyIterator, error) {
	return r.store.Iterator()
}

func (r *Reader) Statistics() map[string]int64 {
	return map[string]int64{"keys": int64(r.store.Len())}
}

func (r *Reader) Close() error {
	return r.store.Close()
}
