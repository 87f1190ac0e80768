// Package params provides the string-keyed parameter bags used by queries,
// query nodes and feature factories.
package params

import (
	"sort"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Recognized query parameters.
const (
	Requested      = "requested"
	QueryType      = "querytype"
	Dialect        = "queryType"
	IndexID        = "indexId"
	RetrievalGroup = "retrievalGroup"
	// Stemming ("true"/"false") selects the stemming tokenizer for the
	// simple dialect. It must match how the index was built.
	Stemming = "stemming"
)

type Parameters map[string]string

func (p Parameters) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// GetInt parses key as an int, returning def when absent.
func (p Parameters) GetInt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Invalid("parameter %s=%q is not an integer", key, v)
	}
	return n, nil
}

// GetFloat parses key as a float64, returning def when absent.
func (p Parameters) GetFloat(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.Invalid("parameter %s=%q is not a number", key, v)
	}
	return f, nil
}

func (p Parameters) Set(key, value string) Parameters {
	p[key] = value
	return p
}

// Clone returns an independent copy; a nil receiver yields an empty bag.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with the non-empty values of other.
func (p Parameters) Merge(other Parameters) Parameters {
	out := p.Clone()
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
