// Package index assembles named parts into the structured index queries are
// evaluated against. It resolves index-backed operators to part iterators
// and provides the document length and name lookups used while ranking.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// PartParameter selects a specific part for an operator served by several.
const PartParameter = "part"

// Index is safe for concurrent use: every call to Iterator or to a lookup
// constructor yields fresh cursors over the shared read-only parts.
type Index struct {
	parts     []Part
	byName    map[string]Part
	operators map[string][]Part
	lengths   Part
	names     Part
	logger    *slog.Logger
}

// Statistics summarises the collection.
type Statistics struct {
	CollectionLength int64                       `json:"collectionLength"`
	DocumentCount    int64                       `json:"documentCount"`
	Parts            map[string]map[string]int64 `json:"parts"`
}

// Parameters renders the collection totals for feature factories.
func (s Statistics) Parameters() params.Parameters {
	return params.Parameters{
		"collectionLength": strconv.FormatInt(s.CollectionLength, 10),
		"documentCount":    strconv.FormatInt(s.DocumentCount, 10),
	}
}

// PartInfo describes one part for listings.
type PartInfo struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Operators []string `json:"operators,omitempty"`
}

// New builds an index over parts. Part names must be unique. The first
// lengths and names parts by name serve the lookups.
func New(parts ...Part) (*Index, error) {
	x := &Index{
		byName:    make(map[string]Part, len(parts)),
		operators: make(map[string][]Part),
		logger:    slog.Default().With("component", "index"),
	}
	for _, p := range parts {
		if _, dup := x.byName[p.Name()]; dup {
			return nil, apperrors.Invalid("duplicate part name %q", p.Name())
		}
		x.byName[p.Name()] = p
		x.parts = append(x.parts, p)
	}
	sort.Slice(x.parts, func(i, j int) bool { return x.parts[i].Name() < x.parts[j].Name() })

	for _, p := range x.parts {
		for op := range p.NodeTypes() {
			x.operators[op] = append(x.operators[op], p)
		}
		switch p.Kind() {
		case KindLengths:
			if x.lengths == nil {
				x.lengths = p
			}
		case KindNames:
			if x.names == nil {
				x.names = p
			}
		}
	}
	x.logger.Debug("index assembled", "parts", len(x.parts), "operators", len(x.operators))
	return x, nil
}

// HasOperator reports whether some part serves op.
func (x *Index) HasOperator(op string) bool {
	return len(x.operators[op]) > 0
}

func (x *Index) resolve(node *query.Node) (Part, error) {
	candidates := x.operators[node.Operator()]
	if len(candidates) == 0 {
		return nil, apperrors.Unsupported(node.Operator())
	}
	name := node.Parameter(PartParameter, "")
	if name == "" {
		return candidates[0], nil
	}
	for _, p := range candidates {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, apperrors.Invalid("part %q does not serve #%s", name, node.Operator())
}

// Iterator builds the iterator of an index-backed node. Operators no part
// serves fail with ErrUnsupportedOperator.
func (x *Index) Iterator(node *query.Node) (*iterator.Iterator, error) {
	p, err := x.resolve(node)
	if err != nil {
		return nil, err
	}
	return p.Iterator(node)
}

// NodeType describes the iterator an index-backed node yields.
func (x *Index) NodeType(node *query.Node) (string, error) {
	p, err := x.resolve(node)
	if err != nil {
		return "", err
	}
	return p.NodeTypes()[node.Operator()], nil
}

// Part returns the part called name.
func (x *Index) Part(name string) (Part, bool) {
	p, ok := x.byName[name]
	return p, ok
}

// AvailableParts lists the parts in name order.
func (x *Index) AvailableParts() []PartInfo {
	infos := make([]PartInfo, 0, len(x.parts))
	for _, p := range x.parts {
		info := PartInfo{Name: p.Name(), Kind: p.Kind()}
		for op := range p.NodeTypes() {
			info.Operators = append(info.Operators, op)
		}
		sort.Strings(info.Operators)
		infos = append(infos, info)
	}
	return infos
}

// Statistics reports collection totals from the lengths part plus each
// part's own counters.
func (x *Index) Statistics() Statistics {
	s := Statistics{Parts: make(map[string]map[string]int64, len(x.parts))}
	for _, p := range x.parts {
		s.Parts[p.Name()] = p.Statistics()
	}
	if x.lengths != nil {
		ls := x.lengths.Statistics()
		s.DocumentCount = ls["documentCount"]
		s.CollectionLength = ls["collectionLength"]
	}
	return s
}

// Lengths returns a fresh length lookup. Without a lengths part every
// document has length 0.
func (x *Index) Lengths() (*LengthLookup, error) {
	if x.lengths == nil {
		return &LengthLookup{}, nil
	}
	keys, err := x.lengths.KeyIterator()
	if err != nil {
		return nil, err
	}
	return &LengthLookup{keys: keys}, nil
}

// Names returns a fresh name lookup. Without a names part every name is
// empty.
func (x *Index) Names() (*NameLookup, error) {
	if x.names == nil {
		return &NameLookup{}, nil
	}
	keys, err := x.names.KeyIterator()
	if err != nil {
		return nil, err
	}
	return &NameLookup{keys: keys}, nil
}

// Probe reads the first entry of every part, so a truncated segment or an
// unreachable store surfaces before a query hits it.
func (x *Index) Probe() error {
	for _, p := range x.parts {
		keys, err := p.KeyIterator()
		if err != nil {
			return fmt.Errorf("part %s: %w", p.Name(), err)
		}
		if _, err := keys.NextKey(); err != nil {
			return fmt.Errorf("part %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Close closes every part and joins their errors.
func (x *Index) Close() error {
	var errs []error
	for _, p := range x.parts {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
