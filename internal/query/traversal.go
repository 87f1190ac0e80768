package query

// Traversal rewrites a tree bottom-up. AfterNode receives a fresh copy of each
// node whose children have already been rewritten and returns its
// replacement.
type Traversal interface {
	AfterNode(n *Node) (*Node, error)
}

// TraversalFunc adapts a function to Traversal.
type TraversalFunc func(n *Node) (*Node, error)

func (f TraversalFunc) AfterNode(n *Node) (*Node, error) { return f(n) }

// Copy applies t to every node of the tree rooted at n in post-order and
// returns the rewritten root. n itself is never modified.
func Copy(t Traversal, n *Node) (*Node, error) {
	children := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		copied, err := Copy(t, c)
		if err != nil {
			return nil, err
		}
		children = append(children, copied)
	}
	return t.AfterNode(n.WithChildren(children))
}

// Transform applies traversals in order.
func Transform(n *Node, traversals ...Traversal) (*Node, error) {
	var err error
	for _, t := range traversals {
		if n, err = Copy(t, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}
