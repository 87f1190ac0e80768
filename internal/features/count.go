package features

import (
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Syn treats its children as one term: it visits every candidate of any
// child and counts the occurrences of all children positioned there.
type Syn struct {
	*union
}

func newSyn(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if err := requireCounters("syn", children); err != nil {
		return nil, err
	}
	return &Syn{union: &union{children: children}}, nil
}

func (s *Syn) Count() int {
	doc := s.CurrentCandidate()
	total := 0
	for _, c := range s.children {
		if c.HasMatch(doc) {
			total += c.Counter.Count()
		}
	}
	return total
}

func requireCounters(op string, children []*iterator.Iterator) error {
	if len(children) == 0 {
		return apperrors.Invalid("#%s needs at least one child", op)
	}
	for i, c := range children {
		if c.Counter == nil {
			return apperrors.Invalid("#%s child %d does not count occurrences", op, i)
		}
	}
	return nil
}
