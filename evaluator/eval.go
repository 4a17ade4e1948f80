package evaluator

import (
	"fmt"
	"math"
)

// Evaluate parses and evaluates expression with float64 arithmetic.
// The result is always finite; failures are returned as *EvalError.
func Evaluate(expression string) (float64, error) {
	n, err := Parse(expression)
	if err != nil {
		return 0, err
	}
	return Eval(n)
}

// Eval walks a syntax tree produced by Parse.
func Eval(n Node) (float64, error) {
	v, err := eval(n)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		// normalise -0
		return 0, nil
	}
	return v, nil
}

func eval(n Node) (float64, error) {
	switch n := n.(type) {
	case *Number:
		return checkFinite(n.Value, n.Pos)
	case *Paren:
		return eval(n.Inner)
	case *Unary:
		v, err := eval(n.Operand)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case *BinaryOp:
		x, err := eval(n.Left)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Right)
		if err != nil {
			return 0, err
		}
		var v float64
		switch n.Op {
		case '+':
			v = x + y
		case '-':
			v = x - y
		case '*':
			v = x * y
		case '/':
			if y == 0 {
				return 0, &EvalError{Kind: DivisionByZero, Pos: n.Pos, Msg: "divisor is zero"}
			}
			v = x / y
		default:
			return 0, parseErrorf(n.Pos, "unknown operator %q", n.Op)
		}
		return checkFinite(v, n.Pos)
	case nil:
		return 0, parseErrorf(-1, "empty expression")
	default:
		return 0, parseErrorf(-1, "unsupported node %T", n)
	}
}

func checkFinite(v float64, pos int) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvalError{Kind: NonFiniteResult, Pos: pos, Msg: fmt.Sprintf("value %v is not finite", v)}
	}
	return v, nil
}
