package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	postings, err := index.SparseEntries(map[string][]sparse.Posting{
		"cat": {{Document: 1, Score: 0.2}, {Document: 5, Score: 0.9}, {Document: 9, Score: 0.5}},
		"dog": {{Document: 2, Score: 0.4}, {Document: 5, Score: 0.3}, {Document: 7, Score: 0.9}},
	})
	require.NoError(t, err)
	cnts, err := index.CountsEntries(map[string][]counts.Posting{
		"cat": {{Document: 1, Occurrences: 1}, {Document: 5, Occurrences: 2}, {Document: 9, Occurrences: 1}},
	})
	require.NoError(t, err)
	sets, err := index.DocsetEntries(map[string][]int{"even": {2, 4}})
	require.NoError(t, err)
	lengths := map[int]int{}
	for d := 0; d < 10; d++ {
		lengths[d] = 10
	}

	var parts []index.Part
	for _, fixture := range []struct {
		name, kind string
		entries    []kv.Entry
	}{
		{"postings", index.KindSparse, postings},
		{"counts", index.KindCounts, cnts},
		{"sets", index.KindDocset, sets},
		{"lengths", index.KindLengths, index.LengthEntries(lengths)},
		{"names", index.KindNames, index.NameEntries(map[int]string{5: "doc-five", 9: "doc-nine"})},
	} {
		p, err := index.MemPart(fixture.name, fixture.kind, fixture.entries)
		require.NoError(t, err)
		parts = append(parts, p)
	}
	x, err := index.New(parts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func newRetrieval(t *testing.T, opts ...Option) *Retrieval {
	t.Helper()
	return New(testIndex(t), params.Parameters{params.IndexID: "0"}, opts...)
}

// ranked parses text, applies the ranked traversals and runs it.
func ranked(t *testing.T, r *Retrieval, text string, p params.Parameters) []ScoredDocument {
	t.Helper()
	node := mustTransform(t, r, text, features.Ranked)
	docs, err := r.RunRankedQuery(context.Background(), node, p)
	require.NoError(t, err)
	return docs
}

func mustTransform(t *testing.T, r *Retrieval, text, queryType string) *query.Node {
	t.Helper()
	node, err := r.ParseQuery(text, nil)
	require.NoError(t, err)
	node, err = r.TransformQuery(node, queryType)
	require.NoError(t, err)
	return node
}

func documents(docs []ScoredDocument) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.Document
	}
	return out
}

func TestRankedTopTwoOfCat(t *testing.T) {
	r := newRetrieval(t)
	docs := ranked(t, r, "cat", params.Parameters{params.Requested: "2"})

	require.Len(t, docs, 2)
	assert.Equal(t, ScoredDocument{Document: 5, Score: float64(float32(0.9)), Rank: 1, Source: "0", Name: "doc-five"}, docs[0])
	assert.Equal(t, ScoredDocument{Document: 9, Score: 0.5, Rank: 2, Source: "0", Name: "doc-nine"}, docs[1])
}

func TestRankedRespectsCapAndOrder(t *testing.T) {
	r := newRetrieval(t)
	for _, requested := range []string{"1", "3", "5", "100"} {
		docs := ranked(t, r, "#combine( cat dog )", params.Parameters{params.Requested: requested})
		require.NotEmpty(t, docs)
		assert.LessOrEqual(t, len(docs), mustAtoi(t, requested))
		for i, d := range docs {
			assert.Equal(t, i+1, d.Rank)
			if i > 0 {
				assert.Greater(t, docs[i-1].Score, d.Score)
			}
		}
	}
	docs := ranked(t, r, "#combine( cat dog )", params.Parameters{params.Requested: "3"})
	assert.Equal(t, []int{5, 7, 9}, documents(docs))
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := params.Parameters{"n": s}.GetInt("n", 0)
	require.NoError(t, err)
	return n
}

func TestRankedTiesPreferLowerDocument(t *testing.T) {
	r := newRetrieval(t)
	docs := ranked(t, r, "#scale:0( cat )", params.Parameters{params.Requested: "2"})
	assert.Equal(t, []int{1, 5}, documents(docs))
	assert.Equal(t, []int{1, 2}, []int{docs[0].Rank, docs[1].Rank})
}

func TestRankedSharesDocumentContext(t *testing.T) {
	r := newRetrieval(t)
	node, err := query.ParseComplex("#tf( #counts:cat() )")
	require.NoError(t, err)
	docs, err := r.RunRankedQuery(context.Background(), node, params.Parameters{params.Requested: "3"})
	require.NoError(t, err)

	assert.Equal(t, []int{5, 1, 9}, documents(docs))
	assert.InDelta(t, 0.2, docs[0].Score, 1e-9)
	assert.InDelta(t, 0.1, docs[1].Score, 1e-9)
}

func TestRankedRejectsBadInput(t *testing.T) {
	r := newRetrieval(t)
	node := mustTransform(t, r, "cat", features.Ranked)

	_, err := r.RunRankedQuery(context.Background(), node, params.Parameters{params.Requested: "0"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	_, err = r.RunRankedQuery(context.Background(), query.Leaf("docset", "even"), nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	bogus, err := query.ParseComplex("#bogus( #scores:cat() )")
	require.NoError(t, err)
	_, err = r.RunRankedQuery(context.Background(), bogus, nil)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))
}

func TestRunQueryFallsBackToRanked(t *testing.T) {
	r := newRetrieval(t)
	node := mustTransform(t, r, "cat", features.Ranked)
	docs, err := r.RunQuery(context.Background(), node, params.Parameters{params.QueryType: "count"})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 9, 1}, documents(docs))
}

func TestBooleanQuery(t *testing.T) {
	r := newRetrieval(t)
	node, err := query.ParseComplex("#docset:even()")
	require.NoError(t, err)

	docs, err := r.RunQuery(context.Background(), node, params.Parameters{params.QueryType: features.Boolean})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, documents(docs))
	for _, d := range docs {
		assert.Equal(t, 1.0, d.Score)
	}

	// the universe of #not comes from the lengths part: ten documents
	node = mustTransform(t, r, "#and( #docset:even() #not( cat ) )", features.Boolean)
	docs, err = r.RunBooleanQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, documents(docs))

	node = mustTransform(t, r, "#not( cat )", features.Boolean)
	docs, err = r.RunBooleanQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 4, 6, 7, 8}, documents(docs))
}

func TestBooleanRootMustIndicate(t *testing.T) {
	r := newRetrieval(t)
	_, err := r.RunBooleanQuery(context.Background(), query.Leaf("counts", "cat"), nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	node := mustTransform(t, r, "cat", features.Boolean)
	assert.Equal(t, "#any( #counts:cat() )", node.String())
	docs, err := r.RunBooleanQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, documents(docs))
}

// countingFactory records how often each operator is constructed.
type countingFactory struct {
	features.Factory
	calls map[string]int
}

func (c *countingFactory) Iterator(node *query.Node, children []*iterator.Iterator) (*iterator.Iterator, error) {
	c.calls[node.Operator()]++
	return c.Factory.Iterator(node, children)
}

func TestBuilderSharesEqualSubtrees(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := &countingFactory{Factory: features.NewRanked(nil), calls: map[string]int{}}
	r := newRetrieval(t, WithMetrics(m), WithFeatureFactory(f))

	node, err := query.ParseComplex("#combine( #max( #scores:cat() ) #max( #scores:cat() ) )")
	require.NoError(t, err)
	docs, err := r.RunRankedQuery(context.Background(), node, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"combine": 1, "max": 1}, f.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IteratorsBuilt.WithLabelValues("index")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IteratorsBuilt.WithLabelValues("feature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IteratorCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(features.Ranked, "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocumentsScored))

	require.Len(t, docs, 3)
	assert.Equal(t, 5, docs[0].Document)
	assert.InDelta(t, 1.8, docs[0].Score, 1e-6)
}

func TestSharedSubtreeKeepsEveryParentsMatches(t *testing.T) {
	r := newRetrieval(t)

	node := mustTransform(t, r, "#or( #and( #docset:even() cat ) cat )", features.Boolean)
	docs, err := r.RunBooleanQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, documents(docs))

	node = mustTransform(t, r, "#and( #or( cat dog ) cat )", features.Boolean)
	docs, err = r.RunBooleanQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, documents(docs))

	docs = ranked(t, r, "#combine( #filter( dog cat ) cat )", nil)
	require.Len(t, docs, 3)
	assert.Equal(t, []int{5, 9, 1}, documents(docs))
	assert.InDelta(t, 1.8, docs[0].Score, 1e-6)
	assert.InDelta(t, 0.2, docs[2].Score, 1e-6)
}

func TestBuilderBuildsChildrenOfIndexNodes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRetrieval(t, WithMetrics(m))

	node, err := query.ParseComplex("#scores:cat( #bogus() )")
	require.NoError(t, err)
	_, err = r.RunRankedQuery(context.Background(), node, nil)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))

	node, err = query.ParseComplex("#scores:cat( #scores:dog() )")
	require.NoError(t, err)
	docs, err := r.RunRankedQuery(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 9, 1}, documents(docs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IteratorsBuilt.WithLabelValues("index")))
}

func TestBuilderKeysOnStructure(t *testing.T) {
	f := &countingFactory{Factory: features.NewRanked(nil), calls: map[string]int{}}
	r := newRetrieval(t, WithFeatureFactory(f))

	node, err := query.ParseComplex("#combine( #scale:2( #scores:cat() ) #scale:3( #scores:cat() ) )")
	require.NoError(t, err)
	_, err = r.CreateIterator(node, features.Ranked, &iterator.DocumentContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["scale"])
}

func TestCountAggregate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRetrieval(t, WithMetrics(m))
	ctx := context.Background()

	c, err := r.CountAggregate(ctx, query.Leaf("counts", "cat"))
	require.NoError(t, err)
	assert.Equal(t, Counts{Documents: 3, Occurrences: 4}, c)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CountAggregations.WithLabelValues("aggregate")))

	node, err := query.ParseComplex("#syn( #counts:cat() )")
	require.NoError(t, err)
	c, err = r.CountAggregate(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, Counts{Documents: 3, Occurrences: 4}, c)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CountAggregations.WithLabelValues("scan")))

	occurrences, err := r.XCount(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, int64(4), occurrences)
	matching, err := r.DocCount(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, int64(3), matching)

	missing, err := r.XCount(ctx, "zebra")
	require.NoError(t, err)
	assert.Zero(t, missing)

	_, err = r.CountAggregate(ctx, query.Leaf("scores", "cat"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestAsyncQueriesShareSinks(t *testing.T) {
	r := newRetrieval(t)
	ctx := context.Background()
	var results ResultSink
	var errs ErrorSink

	failing := r.NewAsyncQuery()
	succeeding := r.NewAsyncQuery()
	require.NoError(t, failing.Start(ctx, query.Leaf("bogus", ""), nil, &results, &errs))
	require.NoError(t, succeeding.Start(ctx, query.Leaf("scores", "dog"), nil, &results, &errs))
	require.NoError(t, failing.Join(ctx))
	require.NoError(t, succeeding.Join(ctx))

	assert.Equal(t, []int{7, 2, 5}, documents(results.Results()))
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Errors()[0], "unsupported operator")
}

func TestAsyncQueryLifecycle(t *testing.T) {
	r := newRetrieval(t)
	ctx := context.Background()
	var results ResultSink
	var errs ErrorSink

	q := r.NewAsyncQuery()
	require.NoError(t, q.Join(ctx))
	require.NoError(t, q.Start(ctx, query.Leaf("scores", "cat"), nil, &results, &errs))
	err := q.Start(ctx, query.Leaf("scores", "cat"), nil, &results, &errs)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	require.NoError(t, q.Join(ctx))
	assert.False(t, q.Running())
	require.NoError(t, q.Start(ctx, query.Leaf("scores", "cat"), nil, &results, &errs))
	require.NoError(t, q.Join(ctx))
	assert.Equal(t, 6, results.Len())
	assert.Zero(t, errs.Len())
}

// blockingFactory holds #block construction until release is closed, then
// builds it as #max.
type blockingFactory struct {
	features.Factory
	release chan struct{}
}

func (b *blockingFactory) Iterator(node *query.Node, children []*iterator.Iterator) (*iterator.Iterator, error) {
	switch node.Operator() {
	case "block":
		<-b.release
		node = query.New("max", "", nil, node.Children()...)
	case "explode":
		panic("boom")
	}
	return b.Factory.Iterator(node, children)
}

func TestAsyncJoinInterrupted(t *testing.T) {
	f := &blockingFactory{Factory: features.NewRanked(nil), release: make(chan struct{})}
	r := newRetrieval(t, WithFeatureFactory(f))
	var results ResultSink
	var errs ErrorSink

	q := r.NewAsyncQuery()
	node := query.New("block", "", nil, query.Leaf("scores", "cat"))
	require.NoError(t, q.Start(context.Background(), node, nil, &results, &errs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Join(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrInterrupted))
	assert.True(t, q.Running())

	close(f.release)
	require.NoError(t, q.Join(context.Background()))
	assert.Equal(t, 3, results.Len())
	assert.Zero(t, errs.Len())
}

func TestAsyncRecoversPanics(t *testing.T) {
	f := &blockingFactory{Factory: features.NewRanked(nil), release: make(chan struct{})}
	r := newRetrieval(t, WithFeatureFactory(f))
	var results ResultSink
	var errs ErrorSink

	q := r.NewAsyncQuery()
	require.NoError(t, q.Start(context.Background(), query.New("explode", "", nil, query.Leaf("scores", "cat")), nil, &results, &errs))
	require.NoError(t, q.Join(context.Background()))
	require.Equal(t, 1, errs.Len())
	assert.True(t, strings.Contains(errs.Errors()[0], "panicked"))
}

func TestSupervisorIsolatesFailures(t *testing.T) {
	r := newRetrieval(t)
	tasks := []Task{
		{ID: "cat", Node: query.Leaf("scores", "cat")},
		{ID: "bad", Node: query.Leaf("bogus", "")},
		{ID: "dog", Node: query.Leaf("scores", "dog"), Parameters: params.Parameters{params.Requested: "1"}},
		{ID: "empty"},
	}
	outcomes := r.NewSupervisor(2).Run(context.Background(), tasks)

	require.Len(t, outcomes, 4)
	assert.Equal(t, []int{5, 9, 1}, documents(outcomes[0].Results))
	assert.True(t, errors.Is(outcomes[1].Err, apperrors.ErrUnsupportedOperator))
	assert.Equal(t, []int{7}, documents(outcomes[2].Results))
	assert.True(t, errors.Is(outcomes[3].Err, apperrors.ErrInvalidArgument))

	var results ResultSink
	var errs ErrorSink
	Merge(outcomes, &results, &errs)
	assert.Equal(t, 4, results.Len())
	require.Equal(t, 2, errs.Len())
	assert.True(t, strings.HasPrefix(errs.Errors()[0], "bad: "))
}

func TestSupervisorCancelled(t *testing.T) {
	r := newRetrieval(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := r.NewSupervisor(0).Run(ctx, []Task{{ID: "cat", Node: query.Leaf("scores", "cat")}})
	require.Len(t, outcomes, 1)
	assert.True(t, errors.Is(outcomes[0].Err, apperrors.ErrInterrupted))
	assert.Equal(t, "cat", outcomes[0].ID)
}

func TestNodeTypeAndParts(t *testing.T) {
	r := newRetrieval(t)

	kind, err := r.NodeType(query.Leaf("scores", "cat"), features.Ranked)
	require.NoError(t, err)
	assert.Equal(t, "scorer", kind)

	kind, err = r.NodeType(query.New("and", "", nil), features.Boolean)
	require.NoError(t, err)
	assert.Equal(t, features.KindIndicator, kind)

	assert.Len(t, r.AvailableParts(), 5)
	assert.Equal(t, int64(10), r.Statistics().DocumentCount)
}

func TestEvaluationRecordsSpans(t *testing.T) {
	r := newRetrieval(t)
	ctx, root := tracing.Start(context.Background(), "request")
	node := mustTransform(t, r, "cat", features.Ranked)
	_, err := r.RunRankedQuery(ctx, node, nil)
	require.NoError(t, err)
	_, err = r.Count(ctx, "cat")
	require.NoError(t, err)

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, features.Ranked, children[0].Name)
	assert.Equal(t, features.Count, children[1].Name)
}

func TestParseQuerySimpleDialectStemming(t *testing.T) {
	r := newRetrieval(t)
	simple := params.Parameters{params.Dialect: query.DialectSimple}

	node, err := r.ParseQuery("Cats", simple)
	require.NoError(t, err)
	assert.Equal(t, "#text:cats()", node.String())

	node, err = r.ParseQuery("Cats", simple.Merge(params.Parameters{params.Stemming: "true"}))
	require.NoError(t, err)
	assert.Equal(t, "#text:cat()", node.String())

	_, err = r.ParseQuery("cats", simple.Merge(params.Parameters{params.Stemming: "maybe"}))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}
