package features

import (
	"math"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

func requireScorers(op string, children []*iterator.Iterator) error {
	if len(children) == 0 {
		return apperrors.Invalid("#%s needs at least one child", op)
	}
	for i, c := range children {
		if c.Scorer == nil {
			return apperrors.Invalid("#%s child %d does not produce scores", op, i)
		}
	}
	return nil
}

// Combine is the weighted sum of its children's scores. Child i is weighted
// by the numbered parameter "i", default 1. Children without a score for the
// document do not contribute; with no contribution at all the document
// scores NoScore.
type Combine struct {
	*union
	weights []float64
}

func newCombine(node *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if err := requireScorers("combine", children); err != nil {
		return nil, err
	}
	weights := make([]float64, len(children))
	for i := range children {
		w, err := floatParameter(node, strconv.Itoa(i), 1)
		if err != nil {
			return nil, err
		}
		weights[i] = w
	}
	return &Combine{union: &union{children: children}, weights: weights}, nil
}

func (c *Combine) Score(doc, length int) float64 {
	total, contributed := 0.0, false
	for i, child := range c.children {
		s := child.Scorer.Score(doc, length)
		if math.IsInf(s, -1) {
			continue
		}
		total += c.weights[i] * s
		contributed = true
	}
	if !contributed {
		return iterator.NoScore
	}
	return total
}

// Max scores a document with its best child score.
type Max struct {
	*union
}

func newMax(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if err := requireScorers("max", children); err != nil {
		return nil, err
	}
	return &Max{union: &union{children: children}}, nil
}

func (m *Max) Score(doc, length int) float64 {
	best := iterator.NoScore
	for _, child := range m.children {
		if s := child.Scorer.Score(doc, length); s > best {
			best = s
		}
	}
	return best
}

// Scale multiplies its only child's score by the weight parameter (or the
// default parameter), default 1.
type Scale struct {
	*union
	weight float64
}

func newScale(node *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if len(children) != 1 {
		return nil, apperrors.Invalid("#scale takes exactly one child, got %d", len(children))
	}
	if err := requireScorers("scale", children); err != nil {
		return nil, err
	}
	def := 1.0
	if node.DefaultParameter() != "" {
		v, err := strconv.ParseFloat(node.DefaultParameter(), 64)
		if err != nil {
			return nil, apperrors.Invalid("#scale weight %q is not a number", node.DefaultParameter())
		}
		def = v
	}
	w, err := floatParameter(node, "weight", def)
	if err != nil {
		return nil, err
	}
	return &Scale{union: &union{children: children}, weight: w}, nil
}

func (s *Scale) Score(doc, length int) float64 {
	v := s.children[0].Scorer.Score(doc, length)
	if math.IsInf(v, -1) {
		return v
	}
	return s.weight * v
}

// TF scores a document with its child's occurrence count divided by the
// document length read from the shared document context.
type TF struct {
	*union
	ctx *iterator.DocumentContext
}

func newTF(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if len(children) != 1 {
		return nil, apperrors.Invalid("#tf takes exactly one child, got %d", len(children))
	}
	if err := requireCounters("tf", children); err != nil {
		return nil, err
	}
	return &TF{union: &union{children: children}}, nil
}

func (t *TF) SetContext(ctx *iterator.DocumentContext) { t.ctx = ctx }

func (t *TF) Score(doc, length int) float64 {
	child := t.children[0]
	if !child.HasMatch(doc) {
		return iterator.NoScore
	}
	if t.ctx != nil && t.ctx.Document == doc {
		length = t.ctx.Length
	}
	count := float64(child.Counter.Count())
	if length <= 0 {
		return count
	}
	return count / float64(length)
}

// Filter scores documents its first child accepts with the score of its
// second child.
type Filter struct {
	*intersection
	condition *iterator.Iterator
	scorer    *iterator.Iterator
}

func newFilter(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if len(children) != 2 {
		return nil, apperrors.Invalid("#filter takes a condition and a scorer, got %d children", len(children))
	}
	if children[1].Scorer == nil {
		return nil, apperrors.Invalid("#filter second child does not produce scores")
	}
	return &Filter{intersection: newIntersection(children), condition: children[0], scorer: children[1]}, nil
}

func (f *Filter) HasMatch(doc int) bool {
	return f.intersection.HasMatch(doc) && matches(f.condition, doc)
}

func (f *Filter) Score(doc, length int) float64 {
	if !f.HasMatch(doc) {
		return iterator.NoScore
	}
	return f.scorer.Scorer.Score(doc, length)
}

func floatParameter(node *query.Node, key string, def float64) (float64, error) {
	v := node.Parameter(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.Invalid("#%s parameter %s=%q is not a number", node.Operator(), key, v)
	}
	return f, nil
}
