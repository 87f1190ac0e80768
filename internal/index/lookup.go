package index

import (
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
)

// LengthLookup answers document lengths by exact key. Lookups must come in
// non-decreasing document order; the underlying key iterator never moves
// back. A document without an entry has length 0.
type LengthLookup struct {
	keys kv.KeyIterator
}

func (l *LengthLookup) Length(doc int) (int, error) {
	if l.keys == nil {
		return 0, nil
	}
	found, err := l.keys.SkipToKey(kv.EncodeDocumentKey(doc))
	if err != nil || !found {
		return 0, err
	}
	v, err := l.keys.StringValue()
	if err != nil {
		return 0, err
	}
	return decodeLength(v)
}

// NameLookup answers display names by exact key, in non-decreasing document
// order. A document without an entry has the empty name.
type NameLookup struct {
	keys kv.KeyIterator
}

func (n *NameLookup) Name(doc int) (string, error) {
	if n.keys == nil {
		return "", nil
	}
	found, err := n.keys.SkipToKey(kv.EncodeDocumentKey(doc))
	if err != nil || !found {
		return "", err
	}
	return n.keys.StringValue()
}
