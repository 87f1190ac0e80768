// Package retrieval evaluates structured queries against an index. It
// compiles a query tree into an iterator tree, drives that tree document at
// a time to produce boolean or ranked results, aggregates counts, and runs
// queries asynchronously or as supervised batches.
package retrieval

import (
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
)

// Defaults applied when a query leaves the corresponding parameter unset.
const (
	DefaultRequested = 1000
	DefaultQueryType = features.Ranked
	DefaultIndexID   = "0"
)

// ScoredDocument is one result. Rank and Name are assigned after selection.
type ScoredDocument struct {
	Document int     `json:"document"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	Source   string  `json:"source"`
	Name     string  `json:"name,omitempty"`
}

// Retrieval evaluates queries over one index. It holds no per-query state
// and is safe for concurrent use.
type Retrieval struct {
	index     *index.Index
	defaults  params.Parameters
	factories map[string]features.Factory
	metrics   *metrics.Metrics
}

type Option func(*Retrieval)

// WithMetrics reports evaluations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retrieval) { r.metrics = m }
}

// WithFeatureFactory replaces the factory used for f.QueryType().
func WithFeatureFactory(f features.Factory) Option {
	return func(r *Retrieval) { r.factories[f.QueryType()] = f }
}

// New returns a Retrieval over idx. defaults fill in query parameters that a
// query leaves unset and are handed, together with the collection
// statistics, to the feature factories.
func New(idx *index.Index, defaults params.Parameters, opts ...Option) *Retrieval {
	settings := defaults.Merge(idx.Statistics().Parameters())
	r := &Retrieval{
		index:    idx,
		defaults: defaults.Clone(),
		factories: map[string]features.Factory{
			features.Boolean: features.NewBoolean(settings),
			features.Count:   features.NewCount(settings),
			features.Ranked:  features.NewRanked(settings),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrieval) factory(queryType string) (features.Factory, error) {
	f, ok := r.factories[queryType]
	if !ok {
		return nil, apperrors.Invalid("unknown query type %q", queryType)
	}
	return f, nil
}

// Parameters overlays p on the defaults.
func (r *Retrieval) Parameters(p params.Parameters) params.Parameters {
	return r.defaults.Merge(p)
}

// ParseQuery parses text in the dialect named by the queryType parameter.
func (r *Retrieval) ParseQuery(text string, p params.Parameters) (*query.Node, error) {
	p = r.Parameters(p)
	stem, err := strconv.ParseBool(p.Get(params.Stemming, "false"))
	if err != nil {
		return nil, apperrors.Invalid("parameter %s=%q is not a boolean", params.Stemming, p[params.Stemming])
	}
	var opts []tokenizer.Option
	if stem {
		opts = append(opts, tokenizer.WithStemming())
	}
	return query.Parse(text, p.Get(params.Dialect, query.DialectComplex), opts...)
}

// TransformQuery applies the traversals of queryType to node. Boolean roots
// are additionally made indicators.
func (r *Retrieval) TransformQuery(node *query.Node, queryType string) (*query.Node, error) {
	f, err := r.factory(queryType)
	if err != nil {
		return nil, err
	}
	out, err := query.Transform(node, f.Traversals(r.index.Statistics().Parameters())...)
	if err != nil {
		return nil, err
	}
	if queryType == features.Boolean {
		out = features.EnsureIndicator(f, out)
	}
	return out, nil
}

func (r *Retrieval) TransformBooleanQuery(node *query.Node) (*query.Node, error) {
	return r.TransformQuery(node, features.Boolean)
}

func (r *Retrieval) TransformCountQuery(node *query.Node) (*query.Node, error) {
	return r.TransformQuery(node, features.Count)
}

func (r *Retrieval) TransformRankedQuery(node *query.Node) (*query.Node, error) {
	return r.TransformQuery(node, features.Ranked)
}

// Statistics reports the collection totals of the index.
func (r *Retrieval) Statistics() index.Statistics {
	return r.index.Statistics()
}

func (r *Retrieval) AvailableParts() []index.PartInfo {
	return r.index.AvailableParts()
}

// NodeType describes what node builds to: the serving part's description
// for index-backed operators, otherwise the factory's for queryType.
func (r *Retrieval) NodeType(node *query.Node, queryType string) (string, error) {
	if r.index.HasOperator(node.Operator()) {
		return r.index.NodeType(node)
	}
	f, err := r.factory(queryType)
	if err != nil {
		return "", err
	}
	return f.NodeType(node)
}
