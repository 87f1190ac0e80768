package features

import (
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
)

// matches reports whether it accepts doc: through its indicator when it has
// one, otherwise by being positioned on doc.
func matches(it *iterator.Iterator, doc int) bool {
	if it.Indicator != nil {
		return it.Indicator.Indicates(doc)
	}
	return it.HasMatch(doc)
}

// union visits every candidate of any child.
type union struct {
	children []*iterator.Iterator
}

func (u *union) CurrentCandidate() int {
	candidate := iterator.Done
	for _, c := range u.children {
		if !c.IsDone() && c.CurrentCandidate() < candidate {
			candidate = c.CurrentCandidate()
		}
	}
	return candidate
}

func (u *union) IsDone() bool {
	for _, c := range u.children {
		if !c.IsDone() {
			return false
		}
	}
	return true
}

func (u *union) HasMatch(doc int) bool {
	for _, c := range u.children {
		if c.HasMatch(doc) {
			return true
		}
	}
	return false
}

func (u *union) MoveTo(doc int) error {
	for _, c := range u.children {
		if err := c.MoveTo(doc); err != nil {
			return err
		}
	}
	return nil
}

func (u *union) MovePast(doc int) error {
	for _, c := range u.children {
		if err := c.MovePast(doc); err != nil {
			return err
		}
	}
	return nil
}

func (u *union) Reset() error {
	for _, c := range u.children {
		if err := c.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (u *union) TotalCandidates() int64 {
	var total int64
	for _, c := range u.children {
		total += c.TotalCandidates()
	}
	return total
}

// intersection matches documents every child is positioned on. It never
// moves its children on its own: the candidate is the largest child
// candidate, and movement only forwards the caller's target. A child shared
// with another parent therefore only ever moves as far as the root asks.
type intersection struct {
	children []*iterator.Iterator
}

func newIntersection(children []*iterator.Iterator) *intersection {
	return &intersection{children: children}
}

func (x *intersection) CurrentCandidate() int {
	candidate := -1
	for _, c := range x.children {
		if c.IsDone() {
			return iterator.Done
		}
		if c.CurrentCandidate() > candidate {
			candidate = c.CurrentCandidate()
		}
	}
	if candidate < 0 {
		return iterator.Done
	}
	return candidate
}

func (x *intersection) IsDone() bool {
	for _, c := range x.children {
		if c.IsDone() {
			return true
		}
	}
	return len(x.children) == 0
}

func (x *intersection) HasMatch(doc int) bool {
	for _, c := range x.children {
		if !c.HasMatch(doc) {
			return false
		}
	}
	return len(x.children) > 0
}

func (x *intersection) MoveTo(doc int) error {
	for _, c := range x.children {
		if err := c.MoveTo(doc); err != nil {
			return err
		}
	}
	return nil
}

func (x *intersection) MovePast(doc int) error {
	for _, c := range x.children {
		if err := c.MovePast(doc); err != nil {
			return err
		}
	}
	return nil
}

func (x *intersection) Reset() error {
	for _, c := range x.children {
		if err := c.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// TotalCandidates is bounded by the smallest child.
func (x *intersection) TotalCandidates() int64 {
	if len(x.children) == 0 {
		return 0
	}
	least := x.children[0].TotalCandidates()
	for _, c := range x.children[1:] {
		if n := c.TotalCandidates(); n < least {
			least = n
		}
	}
	return least
}

// universe walks document ids 0..n-1.
type universe struct {
	n   int
	cur int
}

func (u *universe) CurrentCandidate() int {
	if u.IsDone() {
		return iterator.Done
	}
	return u.cur
}

func (u *universe) IsDone() bool { return u.cur >= u.n }

func (u *universe) HasMatch(doc int) bool { return !u.IsDone() && u.cur == doc }

func (u *universe) MoveTo(doc int) error {
	if doc > u.cur {
		u.cur = doc
	}
	return nil
}

func (u *universe) MovePast(doc int) error {
	return u.MoveTo(doc + 1)
}

func (u *universe) Reset() error {
	u.cur = 0
	return nil
}

func (u *universe) TotalCandidates() int64 { return int64(u.n) }
