// Package tokenizer turns text into index terms: lower-cased alphanumeric
// runs with stop-words dropped and, optionally, a light suffix stemmer
// applied. The index builder and the simple query dialect share it, so both
// sides must agree on stemming.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// suffixRules are tried in order; the first matching suffix whose stripped
// stem keeps at least minLen bytes wins.
var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"ying", "y", 2},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

type Tokenizer struct {
	stem      bool
	stopWords bool
	minLen    int
}

type Option func(*Tokenizer)

// WithStemming enables the suffix stemmer.
func WithStemming() Option {
	return func(t *Tokenizer) { t.stem = true }
}

// KeepStopWords indexes stop-words like any other term.
func KeepStopWords() Option {
	return func(t *Tokenizer) { t.stopWords = false }
}

// New returns a tokenizer that drops stop-words and single-character words.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{stopWords: true, minLen: 2}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Terms returns the index terms of text in order of appearance.
func (t *Tokenizer) Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, word := range words {
		if len(word) < t.minLen {
			continue
		}
		if _, stop := stopWords[word]; stop && t.stopWords {
			continue
		}
		if t.stem {
			word = stem(word)
		}
		terms = append(terms, word)
	}
	return terms
}

// Frequencies counts the terms of text. length is the number of terms kept,
// which is the document length recorded in the index.
func (t *Tokenizer) Frequencies(text string) (freqs map[string]int, length int) {
	terms := t.Terms(text)
	freqs = make(map[string]int, len(terms))
	for _, term := range terms {
		freqs[term]++
	}
	return freqs, len(terms)
}

func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
