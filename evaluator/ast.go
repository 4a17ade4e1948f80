package evaluator

import (
	"strconv"
	"strings"
)

// Node is a parsed expression. The concrete types are Number, BinaryOp,
// Unary and Paren.
type Node interface {
	node()
	String() string
}

// Number is a numeric literal.
type Number struct {
	Value float64
	Pos   int
}

// BinaryOp applies one of + - * / to two operands.
type BinaryOp struct {
	Op          byte
	Left, Right Node
	Pos         int
}

// Unary is a leading minus applied to a factor.
type Unary struct {
	Op      byte
	Operand Node
	Pos     int
}

// Paren is a parenthesised sub-expression.
type Paren struct {
	Inner Node
	Pos   int
}

func (*Number) node()   {}
func (*BinaryOp) node() {}
func (*Unary) node()    {}
func (*Paren) node()    {}

func (n *Number) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *BinaryOp) String() string {
	var sb strings.Builder
	sb.WriteString(n.Left.String())
	sb.WriteByte(n.Op)
	sb.WriteString(n.Right.String())
	return sb.String()
}

func (n *Unary) String() string {
	return string(n.Op) + n.Operand.String()
}

func (n *Paren) String() string {
	return "(" + n.Inner.String() + ")"
}
