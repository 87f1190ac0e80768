package retrieval

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/tracing"
)

// Counts are the totals of a counting query.
type Counts struct {
	Documents   int64 `json:"documents"`
	Occurrences int64 `json:"occurrences"`
}

// CountAggregate totals the matching documents and occurrences of node,
// which must build to a counting iterator. Iterators that carry their own
// totals answer without being walked.
func (r *Retrieval) CountAggregate(ctx context.Context, node *query.Node) (Counts, error) {
	_, span := tracing.Start(ctx, features.Count)
	defer span.End()
	root, err := r.CreateIterator(node, features.Count, nil)
	if err != nil {
		return Counts{}, err
	}
	if root.Counter == nil {
		return Counts{}, apperrors.Invalid("%s does not count occurrences", node.Operator())
	}
	if root.Aggregate != nil {
		r.metrics.CountAggregation("aggregate")
		return Counts{
			Documents:   root.Aggregate.TotalEntries(),
			Occurrences: root.Aggregate.TotalOccurrences(),
		}, nil
	}

	r.metrics.CountAggregation("scan")
	var c Counts
	for !root.IsDone() {
		doc := root.CurrentCandidate()
		if err := root.MoveTo(doc); err != nil {
			return Counts{}, err
		}
		if root.HasMatch(doc) {
			c.Documents++
			c.Occurrences += int64(root.Counter.Count())
		}
		if err := root.MovePast(doc); err != nil {
			return Counts{}, err
		}
	}
	logger.FromContext(ctx).Debug("counted query", "query", node.String(),
		"documents", c.Documents, "occurrences", c.Occurrences)
	return c, nil
}

// Count parses text in the structured syntax, applies the count traversals
// and aggregates it.
func (r *Retrieval) Count(ctx context.Context, text string) (Counts, error) {
	node, err := query.ParseComplex(text)
	if err != nil {
		return Counts{}, err
	}
	node, err = r.TransformCountQuery(node)
	if err != nil {
		return Counts{}, err
	}
	return r.CountAggregate(ctx, node)
}

// XCount returns the total occurrences of a structured query.
func (r *Retrieval) XCount(ctx context.Context, text string) (int64, error) {
	c, err := r.Count(ctx, text)
	return c.Occurrences, err
}

// DocCount returns the number of documents matching a structured query.
func (r *Retrieval) DocCount(ctx context.Context, text string) (int64, error) {
	c, err := r.Count(ctx, text)
	return c.Documents, err
}
