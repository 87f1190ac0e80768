package retrieval

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
)

// builder compiles one query tree. Structurally equal subtrees share a
// single iterator through cache, which lives only as long as the build.
type builder struct {
	index   *index.Index
	factory features.Factory
	ctx     *iterator.DocumentContext
	cache   map[query.Key]*iterator.Iterator
	metrics *metrics.Metrics
}

func (b *builder) build(node *query.Node) (*iterator.Iterator, error) {
	key := node.Key()
	if it, ok := b.cache[key]; ok {
		b.metrics.IteratorCacheHit()
		return it, nil
	}

	children := make([]*iterator.Iterator, 0, node.NumChildren())
	for _, c := range node.Children() {
		child, err := b.build(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	var (
		it     *iterator.Iterator
		err    error
		source string
	)
	if b.index.HasOperator(node.Operator()) {
		source = "index"
		it, err = b.index.Iterator(node)
	} else {
		source = "feature"
		it, err = b.factory.Iterator(node, children)
	}
	if err != nil {
		return nil, err
	}
	if it.Contextual != nil && b.ctx != nil {
		it.Contextual.SetContext(b.ctx)
	}
	b.metrics.IteratorBuilt(source)
	b.cache[key] = it
	return it, nil
}

// CreateIterator builds the iterator tree for node using the feature
// factory of queryType. Contextual iterators in the tree read from ctx,
// which may be nil when nothing in the tree needs document facts.
func (r *Retrieval) CreateIterator(node *query.Node, queryType string, ctx *iterator.DocumentContext) (*iterator.Iterator, error) {
	f, err := r.factory(queryType)
	if err != nil {
		return nil, err
	}
	b := &builder{
		index:   r.index,
		factory: f,
		ctx:     ctx,
		cache:   make(map[query.Key]*iterator.Iterator),
		metrics: r.metrics,
	}
	it, err := b.build(node)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", node, err)
	}
	return it, nil
}
