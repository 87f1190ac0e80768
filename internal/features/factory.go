// Package features provides the operators that are not served by index
// parts. A Factory per query type maps an operator and its already built
// children to an iterator, and supplies the query rewrites for that type.
package features

import (
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Query types.
const (
	Boolean = "boolean"
	Count   = "count"
	Ranked  = "ranked"
)

// Node descriptions reported by NodeType.
const (
	KindIndicator = "indicator"
	KindCounter   = "counter"
	KindScorer    = "scorer"
)

// DocumentCountParameter sizes the document universe of #not and #all.
const DocumentCountParameter = "documentCount"

// Factory builds feature iterators for one query type.
type Factory interface {
	QueryType() string
	// Iterator builds node over its realized children. Operators the factory
	// does not know fail with ErrUnsupportedOperator.
	Iterator(node *query.Node, children []*iterator.Iterator) (*iterator.Iterator, error)
	// Traversals are the rewrites applied to a parsed query of this type, in
	// order. stats carries collection totals.
	Traversals(stats params.Parameters) []query.Traversal
	NodeType(node *query.Node) (string, error)
	Operators() []string
}

// Settings are factory-wide parameters nodes fall back to.
type Settings struct {
	Parameters params.Parameters
}

func (s Settings) documentCount(node *query.Node) (int, error) {
	v := node.Parameter(DocumentCountParameter, s.Parameters.Get(DocumentCountParameter, "0"))
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.Invalid("#%s: bad %s %q", node.Operator(), DocumentCountParameter, v)
	}
	return n, nil
}

type constructor func(node *query.Node, children []*iterator.Iterator, s Settings) (iterator.Navigator, error)

type operator struct {
	kind  string
	build constructor
}

var (
	booleanOperators = map[string]operator{
		"and": {KindIndicator, newAnd},
		"or":  {KindIndicator, newOr},
		"any": {KindIndicator, newOr},
		"not": {KindIndicator, newNot},
		"all": {KindIndicator, newAll},
	}
	countOperators = map[string]operator{
		"syn": {KindCounter, newSyn},
	}
	rankedOperators = map[string]operator{
		"combine": {KindScorer, newCombine},
		"max":     {KindScorer, newMax},
		"scale":   {KindScorer, newScale},
		"tf":      {KindScorer, newTF},
		"filter":  {KindScorer, newFilter},
	}
)

func merge(sets ...map[string]operator) map[string]operator {
	out := map[string]operator{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

type factory struct {
	queryType string
	leaf      string
	operators map[string]operator
	settings  Settings
}

// New returns the factory for queryType.
func New(queryType string, p params.Parameters) (Factory, error) {
	switch queryType {
	case Boolean:
		return NewBoolean(p), nil
	case Count:
		return NewCount(p), nil
	case Ranked:
		return NewRanked(p), nil
	default:
		return nil, apperrors.Invalid("unknown query type %q", queryType)
	}
}

// NewBoolean serves the boolean operators and #syn; bare text becomes
// #counts leaves.
func NewBoolean(p params.Parameters) Factory {
	return &factory{
		queryType: Boolean,
		leaf:      "counts",
		operators: merge(booleanOperators, countOperators),
		settings:  Settings{Parameters: p.Clone()},
	}
}

// NewCount serves #syn; bare text becomes #counts leaves.
func NewCount(p params.Parameters) Factory {
	return &factory{
		queryType: Count,
		leaf:      "counts",
		operators: merge(countOperators),
		settings:  Settings{Parameters: p.Clone()},
	}
}

// NewRanked serves every operator; bare text becomes #scores leaves.
func NewRanked(p params.Parameters) Factory {
	return &factory{
		queryType: Ranked,
		leaf:      "scores",
		operators: merge(booleanOperators, countOperators, rankedOperators),
		settings:  Settings{Parameters: p.Clone()},
	}
}

func (f *factory) QueryType() string { return f.queryType }

func (f *factory) Iterator(node *query.Node, children []*iterator.Iterator) (*iterator.Iterator, error) {
	op, ok := f.operators[node.Operator()]
	if !ok {
		return nil, apperrors.Unsupported(node.Operator())
	}
	nav, err := op.build(node, children, f.settings)
	if err != nil {
		return nil, err
	}
	return iterator.New(nav), nil
}

func (f *factory) NodeType(node *query.Node) (string, error) {
	op, ok := f.operators[node.Operator()]
	if !ok {
		return "", apperrors.Unsupported(node.Operator())
	}
	return op.kind, nil
}

func (f *factory) Operators() []string {
	ops := make([]string, 0, len(f.operators))
	for k := range f.operators {
		ops = append(ops, k)
	}
	sort.Strings(ops)
	return ops
}

func (f *factory) Traversals(stats params.Parameters) []query.Traversal {
	return []query.Traversal{
		TextToLeaf(f.leaf),
		AnnotateUniverse(stats),
	}
}

// TextToLeaf rewrites #text:w() leaves into #op:w().
func TextToLeaf(op string) query.Traversal {
	return query.TraversalFunc(func(n *query.Node) (*query.Node, error) {
		if n.Operator() == query.OpText && n.NumChildren() == 0 {
			return n.WithOperator(op), nil
		}
		return n, nil
	})
}

// AnnotateUniverse gives #not and #all nodes the collection's document count
// unless they carry their own.
func AnnotateUniverse(stats params.Parameters) query.Traversal {
	count := stats.Get(DocumentCountParameter, "")
	return query.TraversalFunc(func(n *query.Node) (*query.Node, error) {
		if count == "" || (n.Operator() != "not" && n.Operator() != "all") {
			return n, nil
		}
		if n.Parameter(DocumentCountParameter, "") != "" {
			return n, nil
		}
		p := n.Parameters()
		p.Set(DocumentCountParameter, count)
		return query.New(n.Operator(), n.DefaultParameter(), p, n.Children()...), nil
	})
}

// EnsureIndicator wraps a boolean query root in #any unless f already
// builds it as an indicator.
func EnsureIndicator(f Factory, root *query.Node) *query.Node {
	if kind, err := f.NodeType(root); err == nil && kind == KindIndicator {
		return root
	}
	if root.Operator() == "docset" {
		return root
	}
	return query.New("any", "", nil, root)
}
