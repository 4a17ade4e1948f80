package evaluator

import "strings"

const (
	// MaxExpressionLength is the longest input, in runes, Parse accepts.
	MaxExpressionLength = 4096
	// MaxDepth bounds parenthesis and unary minus nesting.
	MaxDepth = 256
)

type parser struct {
	tokens []token
	pos    int
	depth  int
}

// Parse turns an expression into a syntax tree. It accepts only the
// arithmetic grammar
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := '-' factor | number | '(' expr ')'
//
// with '%' read as "/100". Anything else is a ParseError.
func Parse(expression string) (Node, error) {
	src := []rune(expression)
	if len(src) > MaxExpressionLength {
		return nil, parseErrorf(MaxExpressionLength, "expression longer than %d characters", MaxExpressionLength)
	}
	if strings.TrimSpace(expression) == "" {
		return nil, parseErrorf(0, "empty expression")
	}

	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		if tok.kind == tokRParen {
			return nil, parseErrorf(tok.pos, "unbalanced ')'")
		}
		return nil, parseErrorf(tok.pos, "unexpected %s", tok.kind)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPlus && tok.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: opByte(tok.kind), Left: left, Right: right, Pos: tok.pos}
	}
}

func (p *parser) term() (Node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokStar && tok.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: opByte(tok.kind), Left: left, Right: right, Pos: tok.pos}
	}
}

func (p *parser) factor() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	tok := p.next()
	if p.depth > MaxDepth {
		return nil, parseErrorf(tok.pos, "expression nested deeper than %d", MaxDepth)
	}

	switch tok.kind {
	case tokNumber:
		n := &Number{Value: tok.value, Pos: tok.pos}
		if follow := p.peek(); follow.kind == tokNumber || follow.kind == tokLParen {
			return nil, parseErrorf(follow.pos, "missing operator before %s", follow.kind)
		}
		return n, nil
	case tokMinus:
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: '-', Operand: operand, Pos: tok.pos}, nil
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			if closing.kind == tokEOF {
				return nil, parseErrorf(tok.pos, "unbalanced '('")
			}
			return nil, parseErrorf(closing.pos, "expected ')' but found %s", closing.kind)
		}
		if follow := p.peek(); follow.kind == tokNumber || follow.kind == tokLParen {
			return nil, parseErrorf(follow.pos, "missing operator before %s", follow.kind)
		}
		return &Paren{Inner: inner, Pos: tok.pos}, nil
	case tokEOF:
		return nil, parseErrorf(tok.pos, "unexpected end of expression")
	default:
		return nil, parseErrorf(tok.pos, "unexpected %s", tok.kind)
	}
}

func opByte(k tokenKind) byte {
	switch k {
	case tokPlus:
		return '+'
	case tokMinus:
		return '-'
	case tokStar:
		return '*'
	default:
		return '/'
	}
}
