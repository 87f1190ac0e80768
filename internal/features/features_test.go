package features

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	sets, err := index.DocsetEntries(map[string][]int{
		"a": {2, 4, 6},
		"b": {4, 5, 6},
	})
	require.NoError(t, err)
	cnts, err := index.CountsEntries(map[string][]counts.Posting{
		"a": {{Document: 1, Occurrences: 1}, {Document: 3, Occurrences: 2}},
		"b": {{Document: 3, Occurrences: 1}, {Document: 5, Occurrences: 4}},
	})
	require.NoError(t, err)
	scores, err := index.SparseEntries(map[string][]sparse.Posting{
		"a": {{Document: 1, Score: 0.5}, {Document: 2, Score: 1}},
		"b": {{Document: 2, Score: 2}, {Document: 3, Score: 1}},
	})
	require.NoError(t, err)

	var parts []index.Part
	for _, fixture := range []struct {
		name, kind string
		entries    []kv.Entry
	}{{"sets", index.KindDocset, sets}, {"counts", index.KindCounts, cnts}, {"scores", index.KindSparse, scores}} {
		p, err := index.MemPart(fixture.name, fixture.kind, fixture.entries)
		require.NoError(t, err)
		parts = append(parts, p)
	}
	x, err := index.New(parts...)
	require.NoError(t, err)
	return x
}

// build realizes node bottom-up: children first, then the index or f.
func build(t *testing.T, x *index.Index, f Factory, node *query.Node) (*iterator.Iterator, error) {
	t.Helper()
	children := make([]*iterator.Iterator, 0, node.NumChildren())
	for _, c := range node.Children() {
		it, err := build(t, x, f, c)
		if err != nil {
			return nil, err
		}
		children = append(children, it)
	}
	if x.HasOperator(node.Operator()) {
		return x.Iterator(node)
	}
	return f.Iterator(node, children)
}

func mustBuild(t *testing.T, f Factory, text string) *iterator.Iterator {
	t.Helper()
	node, err := query.ParseComplex(text)
	require.NoError(t, err)
	it, err := build(t, testIndex(t), f, node)
	require.NoError(t, err)
	return it
}

func indicated(t *testing.T, it *iterator.Iterator) []int {
	t.Helper()
	require.NotNil(t, it.Indicator)
	var docs []int
	for !it.IsDone() {
		doc := it.CurrentCandidate()
		require.NoError(t, it.MoveTo(doc))
		if it.Indicator.Indicates(doc) {
			docs = append(docs, doc)
		}
		require.NoError(t, it.MovePast(doc))
	}
	return docs
}

func TestBooleanOperators(t *testing.T) {
	f := NewBoolean(params.Parameters{DocumentCountParameter: "8"})

	assert.Equal(t, []int{4, 6}, indicated(t, mustBuild(t, f, "#and( #docset:a() #docset:b() )")))
	assert.Equal(t, []int{2, 4, 5, 6}, indicated(t, mustBuild(t, f, "#or( #docset:a() #docset:b() )")))
	assert.Equal(t, []int{0, 1, 3, 5, 7}, indicated(t, mustBuild(t, f, "#not( #docset:a() )")))
	assert.Equal(t, []int{5}, indicated(t, mustBuild(t, f, "#and( #docset:b() #not( #docset:a() ) )")))
	assert.Len(t, indicated(t, mustBuild(t, f, "#all()")), 8)
	assert.Equal(t, []int{1, 3, 5}, indicated(t, mustBuild(t, f, "#any( #counts:a() #counts:b() )")))
}

func TestAndLeavesChildrenWhereTheCallerPutThem(t *testing.T) {
	x := testIndex(t)
	a, err := x.Iterator(query.Leaf("docset", "a"))
	require.NoError(t, err)
	b, err := x.Iterator(query.Leaf("docset", "b"))
	require.NoError(t, err)

	nav, err := NewBoolean(nil).Iterator(query.New("and", "", nil, query.Leaf("docset", "a"), query.Leaf("docset", "b")), []*iterator.Iterator{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, a.CurrentCandidate())
	assert.Equal(t, 4, b.CurrentCandidate())
	assert.Equal(t, 4, nav.CurrentCandidate())
	assert.False(t, nav.HasMatch(4))

	require.NoError(t, nav.MoveTo(4))
	assert.True(t, nav.HasMatch(4))
}

func TestSynSumsCounts(t *testing.T) {
	it := mustBuild(t, NewCount(nil), "#syn( #counts:a() #counts:b() )")
	require.NotNil(t, it.Counter)

	var docs, occurrences []int
	for !it.IsDone() {
		docs = append(docs, it.CurrentCandidate())
		occurrences = append(occurrences, it.Counter.Count())
		require.NoError(t, it.Next())
	}
	assert.Equal(t, []int{1, 3, 5}, docs)
	assert.Equal(t, []int{1, 3, 4}, occurrences)
}

func scoresOf(t *testing.T, it *iterator.Iterator) map[int]float64 {
	t.Helper()
	require.NotNil(t, it.Scorer)
	out := map[int]float64{}
	for !it.IsDone() {
		doc := it.CurrentCandidate()
		require.NoError(t, it.MoveTo(doc))
		if it.HasMatch(doc) {
			out[doc] = it.Scorer.Score(doc, 10)
		}
		require.NoError(t, it.MovePast(doc))
	}
	return out
}

func TestRankedOperators(t *testing.T) {
	f := NewRanked(nil)

	assert.Equal(t, map[int]float64{1: 1, 2: 4, 3: 1},
		scoresOf(t, mustBuild(t, f, "#combine:0=2( #scores:a() #scores:b() )")))
	assert.Equal(t, map[int]float64{1: 0.5, 2: 2, 3: 1},
		scoresOf(t, mustBuild(t, f, "#max( #scores:a() #scores:b() )")))
	assert.Equal(t, map[int]float64{1: 1.5, 2: 3},
		scoresOf(t, mustBuild(t, f, "#scale:3( #scores:a() )")))
	assert.Equal(t, map[int]float64{2: 1},
		scoresOf(t, mustBuild(t, f, "#filter( #docset:a() #scores:a() )")))
	assert.Equal(t, map[int]float64{},
		scoresOf(t, mustBuild(t, f, "#filter( #docset:b() #scores:nothing() )")))
}

func TestCombineWithoutContributionIsNoScore(t *testing.T) {
	it := mustBuild(t, NewRanked(nil), "#combine( #scores:a() )")
	assert.True(t, math.IsInf(it.Scorer.Score(7, 1), -1))
}

func TestTFReadsSharedContext(t *testing.T) {
	it := mustBuild(t, NewRanked(nil), "#tf( #counts:a() )")
	require.NotNil(t, it.Contextual)

	ctx := &iterator.DocumentContext{}
	it.Contextual.SetContext(ctx)

	require.NoError(t, it.MoveTo(3))
	ctx.Document, ctx.Length = 3, 4
	assert.InDelta(t, 0.5, it.Scorer.Score(3, 100), 1e-9)
	assert.True(t, math.IsInf(it.Scorer.Score(2, 4), -1))
}

func TestCapabilityMismatch(t *testing.T) {
	node, err := query.ParseComplex("#combine( #counts:a() )")
	require.NoError(t, err)
	_, err = build(t, testIndex(t), NewRanked(nil), node)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	node, err = query.ParseComplex("#syn( #docset:a() )")
	require.NoError(t, err)
	_, err = build(t, testIndex(t), NewCount(nil), node)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestUnsupportedOperator(t *testing.T) {
	_, err := NewCount(nil).Iterator(query.Leaf("combine", ""), nil)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))

	_, err = NewBoolean(nil).NodeType(query.Leaf("bogus", ""))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))

	_, err = New("fuzzy", nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestTraversals(t *testing.T) {
	node, err := query.ParseComplex("#combine( cat #not( dog ) )")
	require.NoError(t, err)

	stats := params.Parameters{DocumentCountParameter: "10"}
	ranked, err := query.Transform(node, NewRanked(nil).Traversals(stats)...)
	require.NoError(t, err)
	assert.Equal(t, "#combine( #scores:cat() #not:documentCount=10( #scores:dog() ) )", ranked.String())

	counted, err := query.Transform(query.Leaf(query.OpText, "cat"), NewCount(nil).Traversals(stats)...)
	require.NoError(t, err)
	assert.Equal(t, "#counts:cat()", counted.String())
}

func TestEnsureIndicator(t *testing.T) {
	f := NewBoolean(nil)
	assert.Equal(t, "#any( #counts:cat() )", EnsureIndicator(f, query.Leaf("counts", "cat")).String())

	and := query.New("and", "", nil, query.Leaf("docset", "a"))
	assert.Same(t, and, EnsureIndicator(f, and))
	docset := query.Leaf("docset", "a")
	assert.Same(t, docset, EnsureIndicator(f, docset))
}
