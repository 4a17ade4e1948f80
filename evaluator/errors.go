package evaluator

import "fmt"

// Kind classifies an evaluation failure.
type Kind int

const (
	// ParseError covers malformed token sequences, unbalanced
	// parentheses and empty input.
	ParseError Kind = iota
	// DivisionByZero is reported when a divisor evaluates to zero.
	DivisionByZero
	// NonFiniteResult is reported when an intermediate or final value
	// is NaN or infinite.
	NonFiniteResult
)

// String returns the name of the error kind.
func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse error"
	case DivisionByZero:
		return "division by zero"
	case NonFiniteResult:
		return "non-finite result"
	default:
		return "unknown error"
	}
}

// EvalError is the structured error returned by Parse and Evaluate.
type EvalError struct {
	Kind Kind
	// Pos is the rune offset into the expression where the problem was
	// detected, or -1 when no single position applies.
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Msg)
}

// Is reports whether target is an *EvalError of the same kind, so callers
// can match with errors.Is(err, &EvalError{Kind: DivisionByZero}).
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func parseErrorf(pos int, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: ParseError, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
