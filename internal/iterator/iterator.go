// Package iterator defines the document-at-a-time iterator contract shared by
// index parts and feature operators.
//
// Every iterator navigates candidates in increasing document order. What it
// can produce at the current candidate (a count, a score, an indicator) is a
// set of optional capabilities resolved once when the iterator is wrapped.
package iterator

import "math"

// Navigator is the movement contract every iterator implements. Candidates
// are visited in strictly increasing order and movement never goes back
// except through Reset.
type Navigator interface {
	// CurrentCandidate is a lower bound on the next document the iterator
	// can match. Callers MoveTo it before asking HasMatch. Its value is
	// unspecified once IsDone reports true.
	CurrentCandidate() int
	IsDone() bool
	// HasMatch reports whether the iterator is positioned exactly on doc.
	HasMatch(doc int) bool
	// MoveTo positions on the first candidate >= doc. A target at or before
	// the current candidate does not move the iterator.
	MoveTo(doc int) error
	// MovePast positions on the first candidate > doc.
	MovePast(doc int) error
	Reset() error
	// TotalCandidates is an estimate of the number of candidates, used to
	// order conjunctions.
	TotalCandidates() int64
}

// Counter reports an occurrence count at the current candidate.
type Counter interface {
	Count() int
}

// Scorer produces a relevance score for doc of the given length. Documents
// the iterator does not match score math.Inf(-1).
type Scorer interface {
	Score(doc, length int) float64
}

// Indicator reports boolean membership of doc.
type Indicator interface {
	Indicates(doc int) bool
}

// Contextual iterators read per-document facts from a shared context.
type Contextual interface {
	SetContext(ctx *DocumentContext)
}

// Aggregate iterators know their totals without being walked.
type Aggregate interface {
	TotalEntries() int64
	TotalOccurrences() int64
}

// DocumentContext is the document being evaluated. The evaluator updates it
// in place before querying scores; contextual iterators hold a pointer to it.
type DocumentContext struct {
	Document int
	Length   int
}

// Iterator wraps a Navigator with the capabilities its concrete type offers.
// Capability fields are nil when not supported.
type Iterator struct {
	Navigator
	Counter    Counter
	Scorer     Scorer
	Indicator  Indicator
	Contextual Contextual
	Aggregate  Aggregate
}

// New inspects nav once and records which capabilities it implements.
func New(nav Navigator) *Iterator {
	it := &Iterator{Navigator: nav}
	it.Counter, _ = nav.(Counter)
	it.Scorer, _ = nav.(Scorer)
	it.Indicator, _ = nav.(Indicator)
	it.Contextual, _ = nav.(Contextual)
	it.Aggregate, _ = nav.(Aggregate)
	return it
}

// Next moves past the current candidate.
func (it *Iterator) Next() error {
	return it.MovePast(it.CurrentCandidate())
}

// Capabilities lists the supported capability names, for diagnostics.
func (it *Iterator) Capabilities() []string {
	var caps []string
	if it.Counter != nil {
		caps = append(caps, "count")
	}
	if it.Scorer != nil {
		caps = append(caps, "score")
	}
	if it.Indicator != nil {
		caps = append(caps, "indicator")
	}
	if it.Contextual != nil {
		caps = append(caps, "context")
	}
	if it.Aggregate != nil {
		caps = append(caps, "aggregate")
	}
	return caps
}

// NoScore is returned by scorers for documents they do not match.
var NoScore = math.Inf(-1)

// Done is a position past every document, used as the candidate of an
// exhausted iterator.
const Done = math.MaxInt32
