package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/docset"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
)

// Entry builders for fixtures and in-memory parts. Keys come out sorted.

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func SparseEntries(lists map[string][]sparse.Posting) ([]kv.Entry, error) {
	entries := make([]kv.Entry, 0, len(lists))
	for _, term := range sortedKeys(lists) {
		v, err := sparse.Encode(lists[term])
		if err != nil {
			return nil, err
		}
		entries = append(entries, kv.Entry{Key: []byte(term), Value: v})
	}
	return entries, nil
}

func CountsEntries(lists map[string][]counts.Posting) ([]kv.Entry, error) {
	entries := make([]kv.Entry, 0, len(lists))
	for _, term := range sortedKeys(lists) {
		v, err := counts.Encode(lists[term])
		if err != nil {
			return nil, err
		}
		entries = append(entries, kv.Entry{Key: []byte(term), Value: v})
	}
	return entries, nil
}

func DocsetEntries(sets map[string][]int) ([]kv.Entry, error) {
	entries := make([]kv.Entry, 0, len(sets))
	for _, name := range sortedKeys(sets) {
		v, err := docset.Encode(sets[name]...)
		if err != nil {
			return nil, err
		}
		entries = append(entries, kv.Entry{Key: []byte(name), Value: v})
	}
	return entries, nil
}

func LengthEntries(lengths map[int]int) []kv.Entry {
	docs := make([]int, 0, len(lengths))
	for d := range lengths {
		docs = append(docs, d)
	}
	sort.Ints(docs)
	entries := make([]kv.Entry, len(docs))
	for i, d := range docs {
		entries[i] = kv.Entry{Key: kv.EncodeDocumentKey(d), Value: EncodeLength(lengths[d])}
	}
	return entries
}

func NameEntries(names map[int]string) []kv.Entry {
	docs := make([]int, 0, len(names))
	for d := range names {
		docs = append(docs, d)
	}
	sort.Ints(docs)
	entries := make([]kv.Entry, len(docs))
	for i, d := range docs {
		entries[i] = kv.Entry{Key: kv.EncodeDocumentKey(d), Value: []byte(names[d])}
	}
	return entries
}

// MemPart builds a part of kind over an in-memory store.
func MemPart(name, kind string, entries []kv.Entry) (Part, error) {
	store, err := kv.NewMemStore(entries)
	if err != nil {
		return nil, err
	}
	return NewPart(name, kind, store)
}
