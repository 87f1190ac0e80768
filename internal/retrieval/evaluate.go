package retrieval

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/tracing"
)

// RunQuery evaluates node on the path named by the querytype parameter.
// Anything other than boolean runs ranked.
func (r *Retrieval) RunQuery(ctx context.Context, node *query.Node, p params.Parameters) ([]ScoredDocument, error) {
	qt := r.Parameters(p).Get(params.QueryType, DefaultQueryType)
	if qt == features.Boolean {
		return r.RunBooleanQuery(ctx, node, p)
	}
	if qt != features.Ranked {
		logger.FromContext(ctx).Debug("unknown querytype, running ranked", "querytype", qt)
	}
	return r.RunRankedQuery(ctx, node, p)
}

// RunBooleanQuery returns every document the root indicator accepts, in
// ascending document order, each with score 1.
func (r *Retrieval) RunBooleanQuery(ctx context.Context, node *query.Node, p params.Parameters) (results []ScoredDocument, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, features.Boolean)
	defer func() {
		span.SetAttr("results", len(results))
		span.End()
		r.metrics.ObserveQuery(features.Boolean, time.Since(start), err)
	}()

	p = r.Parameters(p)
	logger.FromContext(ctx).Debug("running boolean query", "query", node.String())

	root, err := r.CreateIterator(node, features.Boolean, nil)
	if err != nil {
		return nil, err
	}
	if root.Indicator == nil {
		return nil, apperrors.Invalid("boolean query root %s is not an indicator", node.Operator())
	}

	source := p.Get(params.IndexID, DefaultIndexID)
	for !root.IsDone() {
		doc := root.CurrentCandidate()
		if err := root.MoveTo(doc); err != nil {
			return nil, err
		}
		if root.Indicator.Indicates(doc) {
			results = append(results, ScoredDocument{
				Document: doc,
				Score:    1,
				Rank:     len(results) + 1,
				Source:   source,
			})
		}
		if err := root.MovePast(doc); err != nil {
			return nil, err
		}
	}
	if err := r.resolveNames(results); err != nil {
		return nil, err
	}
	return results, nil
}

// RunRankedQuery scores every document the root matches and keeps the best
// requested of them. Results are in descending score order with ranks from
// 1; equal scores order by ascending document id.
func (r *Retrieval) RunRankedQuery(ctx context.Context, node *query.Node, p params.Parameters) (results []ScoredDocument, err error) {
	start := time.Now()
	scored := 0
	ctx, span := tracing.Start(ctx, features.Ranked)
	defer func() {
		span.SetAttr("scored", scored)
		span.SetAttr("results", len(results))
		span.End()
		r.metrics.ObserveQuery(features.Ranked, time.Since(start), err)
	}()

	p = r.Parameters(p)
	requested, err := p.GetInt(params.Requested, DefaultRequested)
	if err != nil {
		return nil, err
	}
	if requested <= 0 {
		return nil, apperrors.Invalid("requested must be positive, got %d", requested)
	}
	logger.FromContext(ctx).Debug("running ranked query", "query", node.String(), "requested", requested)

	dctx := &iterator.DocumentContext{}
	root, err := r.CreateIterator(node, features.Ranked, dctx)
	if err != nil {
		return nil, err
	}
	if root.Scorer == nil {
		return nil, apperrors.Invalid("ranked query root %s does not produce scores", node.Operator())
	}
	lengths, err := r.index.Lengths()
	if err != nil {
		return nil, err
	}

	top := newTopK(requested)
	for !root.IsDone() {
		doc := root.CurrentCandidate()
		if err := root.MoveTo(doc); err != nil {
			return nil, err
		}
		if root.HasMatch(doc) {
			length, err := lengths.Length(doc)
			if err != nil {
				return nil, err
			}
			dctx.Document, dctx.Length = doc, length
			score := root.Scorer.Score(doc, length)
			scored++
			r.metrics.DocumentScored()
			// A match nothing could score is not ranked.
			if !math.IsInf(score, -1) {
				top.offer(doc, score)
			}
		}
		if err := root.MovePast(doc); err != nil {
			return nil, err
		}
	}

	results = top.drain(p.Get(params.IndexID, DefaultIndexID))
	if err := r.resolveNames(results); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveNames fills in display names with one ascending pass over the
// names part.
func (r *Retrieval) resolveNames(results []ScoredDocument) error {
	if len(results) == 0 {
		return nil
	}
	names, err := r.index.Names()
	if err != nil {
		return err
	}
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return results[order[i]].Document < results[order[j]].Document
	})
	for _, i := range order {
		name, err := names.Name(results[i].Document)
		if err != nil {
			return err
		}
		results[i].Name = name
	}
	return nil
}

type candidate struct {
	doc   int
	score float64
}

// worse orders candidates by score, then by descending document id, so the
// largest id among equal scores is evicted first.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.doc > b.doc
}

// candidateHeap is a min-heap on worse.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK keeps the best capacity candidates offered to it.
type topK struct {
	capacity int
	heap     candidateHeap
}

func newTopK(capacity int) *topK {
	return &topK{capacity: capacity}
}

func (t *topK) offer(doc int, score float64) {
	c := candidate{doc: doc, score: score}
	if t.heap.Len() < t.capacity {
		heap.Push(&t.heap, c)
		return
	}
	if worse(t.heap[0], c) {
		t.heap[0] = c
		heap.Fix(&t.heap, 0)
	}
}

// drain empties t into best-first order with ranks assigned.
func (t *topK) drain(source string) []ScoredDocument {
	out := make([]ScoredDocument, t.heap.Len())
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(&t.heap).(candidate)
		out[i] = ScoredDocument{Document: c.doc, Score: c.score, Rank: i + 1, Source: source}
	}
	return out
}
