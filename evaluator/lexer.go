package evaluator

import (
	"errors"
	"math"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return "number"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "unknown token"
	}
}

type token struct {
	kind  tokenKind
	pos   int
	value float64
}

// tokenize splits src into tokens. A '%' is emitted as the pair "/ 100",
// so "50%" reads as "50/100" and is never a modulo operator.
func tokenize(src []rune) ([]token, error) {
	tokens := make([]token, 0, len(src)/2+1)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '+':
			tokens = append(tokens, token{kind: tokPlus, pos: i})
			i++
		case c == '-':
			tokens = append(tokens, token{kind: tokMinus, pos: i})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokStar, pos: i})
			i++
		case c == '/':
			tokens = append(tokens, token{kind: tokSlash, pos: i})
			i++
		case c == '%':
			tokens = append(tokens,
				token{kind: tokSlash, pos: i},
				token{kind: tokNumber, pos: i, value: 100})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case isDigit(c) || c == '.':
			tok, next, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			return nil, parseErrorf(i, "unexpected character %q", c)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

// scanNumber reads digits [. digits] [e [+-] digits] starting at start.
func scanNumber(src []rune, start int) (token, int, error) {
	i := start
	digits := 0
	for i < len(src) && isDigit(src[i]) {
		i++
		digits++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return token{}, 0, parseErrorf(start, "malformed number")
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		i++
		if i < len(src) && (src[i] == '+' || src[i] == '-') {
			i++
		}
		expDigits := 0
		for i < len(src) && isDigit(src[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return token{}, 0, parseErrorf(start, "malformed exponent")
		}
	}

	v, err := strconv.ParseFloat(string(src[start:i]), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return token{}, 0, &EvalError{Kind: NonFiniteResult, Pos: start, Msg: "number out of range"}
		}
		if !errors.Is(err, strconv.ErrRange) {
			return token{}, 0, parseErrorf(start, "malformed number")
		}
	}
	return token{kind: tokNumber, pos: start, value: v}, i, nil
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
