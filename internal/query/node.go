// Package query models structured query trees: immutable nodes with a
// canonical textual form, a collision-free structural key, the two parsing
// dialects and tree traversals.
package query

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
)

// Node is one operator application in a query tree. Nodes are immutable; use
// WithChildren or the constructors to derive new trees.
type Node struct {
	operator   string
	defaultArg string
	parameters params.Parameters
	children   []*Node
}

// New builds a node. The parameter bag and children slice are copied.
func New(operator, defaultParameter string, p params.Parameters, children ...*Node) *Node {
	kids := make([]*Node, len(children))
	copy(kids, children)
	return &Node{
		operator:   operator,
		defaultArg: defaultParameter,
		parameters: p.Clone(),
		children:   kids,
	}
}

// Leaf builds a childless node such as #scores:cat().
func Leaf(operator, defaultParameter string) *Node {
	return New(operator, defaultParameter, nil)
}

func (n *Node) Operator() string         { return n.operator }
func (n *Node) DefaultParameter() string { return n.defaultArg }
func (n *Node) NumChildren() int         { return len(n.children) }
func (n *Node) Child(i int) *Node        { return n.children[i] }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Parameter returns a named parameter, or def when unset.
func (n *Node) Parameter(key, def string) string {
	return n.parameters.Get(key, def)
}

// Parameters returns a copy of the named parameters.
func (n *Node) Parameters() params.Parameters {
	return n.parameters.Clone()
}

// WithChildren returns a copy of n with a new child list.
func (n *Node) WithChildren(children []*Node) *Node {
	return New(n.operator, n.defaultArg, n.parameters, children...)
}

// WithOperator returns a copy of n under a different operator.
func (n *Node) WithOperator(operator string) *Node {
	return New(operator, n.defaultArg, n.parameters, n.children...)
}

// String renders the canonical text, e.g. #combine:0=2( #scores:cat() #scores:dog() ).
func (n *Node) String() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	b.WriteByte('#')
	b.WriteString(n.operator)
	if n.defaultArg != "" {
		b.WriteByte(':')
		b.WriteString(n.defaultArg)
	}
	for _, k := range n.parameters.Keys() {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(n.parameters[k])
	}
	if len(n.children) == 0 {
		b.WriteString("()")
		return
	}
	b.WriteString("( ")
	for i, c := range n.children {
		if i > 0 {
			b.WriteByte(' ')
		}
		c.writeText(b)
	}
	b.WriteString(" )")
}

// Key identifies a subtree structurally.
type Key string

// Key builds the structural identity of the subtree rooted at n. Every atom
// is quoted, so two nodes share a key only if operator, default parameter,
// named parameters and children are all equal.
func (n *Node) Key() Key {
	var b strings.Builder
	n.writeKey(&b)
	return Key(b.String())
}

func (n *Node) writeKey(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(strconv.Quote(n.operator))
	b.WriteByte(' ')
	b.WriteString(strconv.Quote(n.defaultArg))
	b.WriteString(" [")
	for _, k := range n.parameters.Keys() {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(n.parameters[k]))
		b.WriteByte(' ')
	}
	b.WriteByte(']')
	for _, c := range n.children {
		b.WriteByte(' ')
		c.writeKey(b)
	}
	b.WriteByte(')')
}
