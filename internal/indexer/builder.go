// Package indexer builds on-disk indexes from documents. A Builder collects
// tokenized documents in memory and writes one segment file per part plus
// the manifest that index.Open reads.
package indexer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// BM25 parameters of the precomputed term scores.
const (
	k1 = 1.2
	b  = 0.75
)

// Part names written by Write.
const (
	PostingsPart = "postings"
	CountsPart   = "counts"
	SetsPart     = "sets"
	LengthsPart  = "lengths"
	NamesPart    = "names"
)

// Document is one input record. Sets names the document sets it belongs to.
type Document struct {
	ID   int      `json:"id"`
	Name string   `json:"name,omitempty"`
	Text string   `json:"text"`
	Sets []string `json:"sets,omitempty"`
}

type Builder struct {
	tokenizer   *tokenizer.Tokenizer
	frequencies map[string]map[int]int
	lengths     map[int]int
	names       map[int]string
	sets        map[string][]int
	totalTokens int64
	logger      *slog.Logger
}

func New(tok *tokenizer.Tokenizer) *Builder {
	return &Builder{
		tokenizer:   tok,
		frequencies: make(map[string]map[int]int),
		lengths:     make(map[int]int),
		names:       make(map[int]string),
		sets:        make(map[string][]int),
		logger:      slog.Default().With("component", "indexer"),
	}
}

// Add indexes doc. Ids must be non-negative and unique.
func (bl *Builder) Add(doc Document) error {
	if doc.ID < 0 || doc.ID >= math.MaxInt32 {
		return apperrors.Invalid("document id %d out of range", doc.ID)
	}
	if _, dup := bl.lengths[doc.ID]; dup {
		return apperrors.Invalid("document %d added twice", doc.ID)
	}

	freqs, length := bl.tokenizer.Frequencies(doc.Text)
	for term, n := range freqs {
		postings, ok := bl.frequencies[term]
		if !ok {
			postings = make(map[int]int)
			bl.frequencies[term] = postings
		}
		postings[doc.ID] = n
	}
	bl.lengths[doc.ID] = length
	bl.totalTokens += int64(length)
	if doc.Name != "" {
		bl.names[doc.ID] = doc.Name
	}
	for _, set := range doc.Sets {
		bl.sets[set] = append(bl.sets[set], doc.ID)
	}
	bl.logger.Debug("document indexed", "doc", doc.ID, "length", length, "terms", len(freqs))
	return nil
}

// ReadJSONL adds one Document per non-empty line of r and returns how many
// were added.
func (bl *Builder) ReadJSONL(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	added, line := 0, 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(text, &doc); err != nil {
			return added, apperrors.Invalid("line %d: %v", line, err)
		}
		if err := bl.Add(doc); err != nil {
			return added, fmt.Errorf("line %d: %w", line, err)
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return added, apperrors.IO("reading documents", err)
	}
	return added, nil
}

// Len reports the number of documents added.
func (bl *Builder) Len() int { return len(bl.lengths) }

// NameEntries returns the names part, for loading into an external store.
func (bl *Builder) NameEntries() []kv.Entry {
	return index.NameEntries(bl.names)
}

// Postings returns the score and count lists of every term, documents
// ascending. Scores are BM25 weights over the whole collection.
func (bl *Builder) Postings() (map[string][]sparse.Posting, map[string][]counts.Posting) {
	scores := make(map[string][]sparse.Posting, len(bl.frequencies))
	occurrences := make(map[string][]counts.Posting, len(bl.frequencies))
	total := int64(len(bl.lengths))
	var avgLength float64
	if total > 0 {
		avgLength = float64(bl.totalTokens) / float64(total)
	}

	for term, postings := range bl.frequencies {
		docs := make([]int, 0, len(postings))
		for doc := range postings {
			docs = append(docs, doc)
		}
		sort.Ints(docs)

		idf := computeIDF(total, int64(len(docs)))
		s := make([]sparse.Posting, len(docs))
		c := make([]counts.Posting, len(docs))
		for i, doc := range docs {
			tf := postings[doc]
			weight := idf * computeTFNorm(float64(tf), float64(bl.lengths[doc]), avgLength)
			s[i] = sparse.Posting{Document: doc, Score: float32(weight)}
			c[i] = counts.Posting{Document: doc, Occurrences: tf}
		}
		scores[term] = s
		occurrences[term] = c
	}
	return scores, occurrences
}

// WriteOptions controls Write.
type WriteOptions struct {
	Name        string
	Compression segment.Compression
	// ExternalNames leaves the names part out of the segment files; the
	// manifest lists it without a file, to be supplied through
	// index.WithStore.
	ExternalNames bool
}

// Write stores every part under dir and writes the manifest last, so a
// directory with a manifest always has all of its segments.
func (bl *Builder) Write(dir string, opts WriteOptions) (*index.Manifest, error) {
	scores, occurrences := bl.Postings()
	postingEntries, err := index.SparseEntries(scores)
	if err != nil {
		return nil, err
	}
	countEntries, err := index.CountsEntries(occurrences)
	if err != nil {
		return nil, err
	}
	setEntries, err := index.DocsetEntries(bl.sets)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		name, kind string
		entries    []kv.Entry
	}{
		{PostingsPart, index.KindSparse, postingEntries},
		{CountsPart, index.KindCounts, countEntries},
		{SetsPart, index.KindDocset, setEntries},
		{LengthsPart, index.KindLengths, index.LengthEntries(bl.lengths)},
		{NamesPart, index.KindNames, bl.NameEntries()},
	}

	w := segment.NewWriter(dir, opts.Compression)
	m := &index.Manifest{Name: opts.Name}
	for _, p := range parts {
		pm := index.PartManifest{Name: p.name, Kind: p.kind}
		if p.name != NamesPart || !opts.ExternalNames {
			pm.File = p.name + ".seg"
			if _, err := w.Write(pm.File, p.entries); err != nil {
				return nil, fmt.Errorf("writing part %s: %w", p.name, err)
			}
		}
		m.Parts = append(m.Parts, pm)
	}
	if err := index.WriteManifest(dir, m); err != nil {
		return nil, err
	}

	bl.logger.Info("index written",
		"dir", dir,
		"documents", len(bl.lengths),
		"terms", len(bl.frequencies),
		"sets", len(bl.sets),
		"compression", opts.Compression.String(),
	)
	return m, nil
}

func computeIDF(totalDocs, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
