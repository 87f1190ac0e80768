// Package docset stores named document sets as roaring bitmaps and serves
// them as indicator iterators.
package docset

import (
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Operator is served by docset parts: #docset:<name>().
const Operator = "docset"

// Encode serialises a set of document ids.
func Encode(docs ...int) ([]byte, error) {
	bm := roaring.New()
	for _, d := range docs {
		if d < 0 || d >= iterator.Done {
			return nil, apperrors.Invalid("document %d out of range", d)
		}
		bm.Add(uint32(d))
	}
	bm.RunOptimize()
	return bm.ToBytes()
}

// Decode reads a serialised set.
func Decode(r io.Reader) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if _, err := bm.ReadFrom(r); err != nil {
		return nil, apperrors.IO("decoding document set", err)
	}
	return bm, nil
}

// Iterator walks the members of a set in increasing order and indicates
// true on each of them.
type Iterator struct {
	bitmap *roaring.Bitmap
	it     roaring.IntPeekable
}

var (
	_ iterator.Navigator = (*Iterator)(nil)
	_ iterator.Indicator = (*Iterator)(nil)
)

func NewIterator(bm *roaring.Bitmap) *Iterator {
	return &Iterator{bitmap: bm, it: bm.Iterator()}
}

func (d *Iterator) CurrentCandidate() int {
	if !d.it.HasNext() {
		return iterator.Done
	}
	return int(d.it.PeekNext())
}

func (d *Iterator) IsDone() bool { return !d.it.HasNext() }

func (d *Iterator) HasMatch(doc int) bool {
	return d.it.HasNext() && int(d.it.PeekNext()) == doc
}

func (d *Iterator) MoveTo(doc int) error {
	if doc > 0 {
		d.it.AdvanceIfNeeded(uint32(doc))
	}
	return nil
}

func (d *Iterator) MovePast(doc int) error {
	return d.MoveTo(doc + 1)
}

func (d *Iterator) Reset() error {
	d.it = d.bitmap.Iterator()
	return nil
}

func (d *Iterator) TotalCandidates() int64 {
	return int64(d.bitmap.GetCardinality())
}

func (d *Iterator) Indicates(doc int) bool {
	return d.HasMatch(doc)
}

// Reader serves sets out of a key/value store keyed by set name.
type Reader struct {
	store kv.Store
}

func NewReader(store kv.Store) *Reader {
	return &Reader{store: store}
}

// Set returns the members of name; an unknown name is the empty set.
func (r *Reader) Set(name string) (*roaring.Bitmap, error) {
	keys, err := r.store.Iterator()
	if err != nil {
		return nil, err
	}
	found, err := keys.SkipToKey([]byte(name))
	if err != nil {
		return nil, err
	}
	if !found {
		return roaring.New(), nil
	}
	value, err := keys.ValueStream()
	if err != nil {
		return nil, err
	}
	return Decode(value)
}

func (r *Reader) NodeTypes() map[string]string {
	return map[string]string{Operator: "indicator"}
}

func (r *Reader) Iterator(node *query.Node) (*iterator.Iterator, error) {
	if node.Operator() != Operator {
		return nil, apperrors.Unsupported(node.Operator())
	}
	bm, err := r.Set(node.DefaultParameter())
	if err != nil {
		return nil, err
	}
	return iterator.New(NewIterator(bm)), nil
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
