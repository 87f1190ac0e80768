package features

import (
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// And indicates documents every child accepts.
type And struct {
	*intersection
	children []*iterator.Iterator
}

func newAnd(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	if len(children) == 0 {
		return nil, apperrors.Invalid("#and needs at least one child")
	}
	return &And{intersection: newIntersection(children), children: children}, nil
}

func (a *And) Indicates(doc int) bool {
	if !a.HasMatch(doc) {
		return false
	}
	for _, c := range a.children {
		if !matches(c, doc) {
			return false
		}
	}
	return true
}

// Or indicates documents some child accepts. It serves both #or and #any.
type Or struct {
	*union
}

func newOr(_ *query.Node, children []*iterator.Iterator, _ Settings) (iterator.Navigator, error) {
	return &Or{union: &union{children: children}}, nil
}

func (o *Or) Indicates(doc int) bool {
	for _, c := range o.children {
		if c.HasMatch(doc) && matches(c, doc) {
			return true
		}
	}
	return false
}

// Not walks every document of the collection and indicates those its child
// does not accept.
type Not struct {
	universe
	child *iterator.Iterator
}

func newNot(node *query.Node, children []*iterator.Iterator, s Settings) (iterator.Navigator, error) {
	if len(children) != 1 {
		return nil, apperrors.Invalid("#not takes exactly one child, got %d", len(children))
	}
	n, err := s.documentCount(node)
	if err != nil {
		return nil, err
	}
	return &Not{universe: universe{n: n}, child: children[0]}, nil
}

func (n *Not) sync() error {
	if n.universe.IsDone() {
		return nil
	}
	return n.child.MoveTo(n.cur)
}

func (n *Not) MoveTo(doc int) error {
	n.universe.MoveTo(doc)
	return n.sync()
}

func (n *Not) MovePast(doc int) error {
	n.universe.MovePast(doc)
	return n.sync()
}

func (n *Not) Reset() error {
	n.universe.Reset()
	if err := n.child.Reset(); err != nil {
		return err
	}
	return n.sync()
}

func (n *Not) Indicates(doc int) bool {
	return n.HasMatch(doc) && !(n.child.HasMatch(doc) && matches(n.child, doc))
}

// All indicates every document of the collection.
type All struct {
	universe
}

func newAll(node *query.Node, children []*iterator.Iterator, s Settings) (iterator.Navigator, error) {
	if len(children) != 0 {
		return nil, apperrors.Invalid("#all takes no children")
	}
	n, err := s.documentCount(node)
	if err != nil {
		return nil, err
	}
	return &All{universe: universe{n: n}}, nil
}

func (a *All) Indicates(doc int) bool { return a.HasMatch(doc) }
