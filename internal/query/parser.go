package query

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Dialects accepted by Parse, selected by the queryType parameter.
const (
	DialectSimple  = "simple"
	DialectComplex = "complex"
)

// Operators the parsers produce for free text.
const (
	OpText    = "text"
	OpCombine = "combine"
)

// Parse dispatches on dialect; anything but "simple" is parsed as complex.
// opts configure the tokenizer of the simple dialect.
func Parse(text, dialect string, opts ...tokenizer.Option) (*Node, error) {
	if dialect == DialectSimple {
		return ParseSimple(text, opts...)
	}
	return ParseComplex(text)
}

// ParseSimple turns free text into #combine over one #text leaf per term,
// tokenized the way documents are indexed. A single term yields the bare
// leaf.
func ParseSimple(text string, opts ...tokenizer.Option) (*Node, error) {
	terms := tokenizer.New(opts...).Terms(text)
	if len(terms) == 0 {
		return nil, apperrors.Invalid("query %q has no searchable terms", text)
	}
	leaves := make([]*Node, 0, len(terms))
	for _, term := range terms {
		leaves = append(leaves, Leaf(OpText, term))
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return New(OpCombine, "", nil, leaves...), nil
}

// ParseComplex parses the structured syntax:
//
//	#combine:0=2( #scores:cat() dog #docset:recent() )
//
// Operator parameters follow the operator name separated by ':'; the first
// one without '=' is the default parameter. Bare words become #text leaves.
// Several top-level expressions are combined under #combine.
func ParseComplex(text string) (*Node, error) {
	p := &parser{src: text}
	var roots []*Node
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		roots = append(roots, n)
	}
	switch len(roots) {
	case 0:
		return nil, apperrors.Invalid("empty query")
	case 1:
		return roots[0], nil
	default:
		return New(OpCombine, "", nil, roots...), nil
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *parser) parseNode() (*Node, error) {
	if p.peek() == ')' {
		return nil, apperrors.Invalid("unexpected ')' at offset %d", p.pos)
	}
	if p.peek() != '#' {
		word := p.readAtom(false)
		if word == "" {
			return nil, apperrors.Invalid("unexpected %q at offset %d", p.peek(), p.pos)
		}
		return Leaf(OpText, word), nil
	}
	p.pos++ // '#'
	operator := p.readAtom(true)
	if operator == "" {
		return nil, apperrors.Invalid("missing operator name at offset %d", p.pos)
	}
	var def string
	named := params.Parameters{}
	for !p.eof() && p.peek() == ':' {
		p.pos++
		arg := p.readAtom(true)
		if k, v, ok := strings.Cut(arg, "="); ok {
			named[k] = v
			continue
		}
		if def != "" {
			return nil, apperrors.Invalid("operator #%s has two default parameters", operator)
		}
		def = arg
	}
	if p.eof() || p.peek() != '(' {
		return nil, apperrors.Invalid("operator #%s must be followed by '('", operator)
	}
	p.pos++
	var children []*Node
	for {
		p.skipSpace()
		if p.eof() {
			return nil, apperrors.Invalid("unterminated #%s(", operator)
		}
		if p.peek() == ')' {
			p.pos++
			break
		}
		child, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return New(operator, def, named, children...), nil
}

// readAtom consumes a run of characters up to whitespace, a parenthesis, or
// (inside an operator header) a ':'.
func (p *parser) readAtom(header bool) string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if unicode.IsSpace(rune(c)) || c == '(' || c == ')' || c == '#' {
			break
		}
		if header && c == ':' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}
