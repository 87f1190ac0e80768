package sparse

import (
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Operator is the query operator served by sparse parts: #scores:<term>().
const Operator = "scores"

// Reader serves score lists out of a key/value store keyed by term.
type Reader struct {
	store kv.Store
}

func NewReader(store kv.Store) *Reader {
	return &Reader{store: store}
}

// Scores returns the iterator over term's list. An unknown term yields an
// empty iterator.
func (r *Reader) Scores(term string) (*Iterator, error) {
	keys, err := r.store.Iterator()
	if err != nil {
		return nil, err
	}
	found, err := keys.SkipToKey([]byte(term))
	if err != nil {
		return nil, err
	}
	if !found {
		return NewIterator(nil)
	}
	return NewIterator(keys)
}

// Records returns an iterator positioned on the first record of the part,
// for walking every record with NextRecord.
func (r *Reader) Records() (*Iterator, error) {
	return r.RecordsIn(nil, nil)
}

// RecordsIn is Records restricted to the terms in [start, end). A nil bound
// is open.
func (r *Reader) RecordsIn(start, end []byte) (*Iterator, error) {
	inner, err := r.store.Iterator()
	if err != nil {
		return nil, err
	}
	var keys kv.KeyIterator = inner
	if start != nil || end != nil {
		keys = kv.NewRangeIterator(inner, start, end)
	}
	if _, err := keys.NextKey(); err != nil {
		return nil, err
	}
	it, err := NewIterator(keys)
	if err != nil {
		return nil, err
	}
	for it.IsDone() && !keys.IsDone() {
		if _, err := it.NextTerm(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (r *Reader) NodeTypes() map[string]string {
	return map[string]string{Operator: "scorer"}
}

func (r *Reader) Iterator(node *query.Node) (*iterator.Iterator, error) {
	if node.Operator() != Operator {
		return nil, apperrors.Unsupported(node.Operator())
	}
	it, err := r.Scores(node.DefaultParameter())
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
