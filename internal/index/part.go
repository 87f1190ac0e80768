package index

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/docset"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Part kinds.
const (
	KindSparse  = "sparse"
	KindCounts  = "counts"
	KindDocset  = "docset"
	KindLengths = "lengths"
	KindNames   = "names"
)

// Reader is what every kind of part serves.
type Reader interface {
	// NodeTypes maps each operator the part serves to a short description of
	// the iterator it yields.
	NodeTypes() map[string]string
	Iterator(node *query.Node) (*iterator.Iterator, error)
	KeyIterator() (kv.KeyIterator, error)
	Statistics() map[string]int64
	Close() error
}

// Part is a named Reader of a known kind.
type Part interface {
	Reader
	Name() string
	Kind() string
}

type constructor func(store kv.Store) (Reader, error)

var kinds = map[string]constructor{
	KindSparse:  func(s kv.Store) (Reader, error) { return sparse.NewReader(s), nil },
	KindCounts:  func(s kv.Store) (Reader, error) { return counts.NewReader(s), nil },
	KindDocset:  func(s kv.Store) (Reader, error) { return docset.NewReader(s), nil },
	KindLengths: newLengthsReader,
	KindNames:   func(s kv.Store) (Reader, error) { return &namesReader{store: s}, nil },
}

// Kinds lists the registered part kinds.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type part struct {
	Reader
	name string
	kind string
}

func (p *part) Name() string { return p.name }
func (p *part) Kind() string { return p.kind }

// NewPart wraps store as a part of the given kind.
func NewPart(name, kind string, store kv.Store) (Part, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, apperrors.Invalid("part %q has unknown kind %q", name, kind)
	}
	r, err := ctor(store)
	if err != nil {
		return nil, err
	}
	return &part{Reader: r, name: name, kind: kind}, nil
}

// EncodeLength renders a document length value.
func EncodeLength(length int) []byte {
	return []byte(strconv.Itoa(length))
}

func decodeLength(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.IO("decoding document length", fmt.Errorf("value %q", v))
	}
	return n, nil
}

// lengthsReader maps document keys to lengths. Totals are computed once
// when the part is opened.
type lengthsReader struct {
	store            kv.Store
	documents        int64
	collectionLength int64
}

func newLengthsReader(store kv.Store) (Reader, error) {
	r := &lengthsReader{store: store}
	keys, err := store.Iterator()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := keys.NextKey()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v, err := keys.StringValue()
		if err != nil {
			return nil, err
		}
		n, err := decodeLength(v)
		if err != nil {
			return nil, err
		}
		r.documents++
		r.collectionLength += int64(n)
	}
	return r, nil
}

func (r *lengthsReader) NodeTypes() map[string]string { return map[string]string{} }

func (r *lengthsReader) Iterator(node *query.Node) (*iterator.Iterator, error) {
	return nil, apperrors.Unsupported(node.Operator())
}

func (r *lengthsReader) KeyIterator() (kv.KeyIterator, error) { return r.store.Iterator() }

func (r *lengthsReader) Statistics() map[string]int64 {
	return map[string]int64{
		"documentCount":    r.documents,
		"collectionLength": r.collectionLength,
	}
}

func (r *lengthsReader) Close() error { return r.store.Close() }

type namesReader struct {
	store kv.Store
}

func (r *namesReader) NodeTypes() map[string]string { return map[string]string{} }

func (r *namesReader) Iterator(node *query.Node) (*iterator.Iterator, error) {
	return nil, apperrors.Unsupported(node.Operator())
}

func (r *namesReader) KeyIterator() (kv.KeyIterator, error) { return r.store.Iterator() }

func (r *namesReader) Statistics() map[string]int64 {
	return map[string]int64{"keys": int64(r.store.Len())}
}

func (r *namesReader) Close() error { return r.store.Close() }
