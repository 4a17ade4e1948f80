package evaluator

import (
	"math"
	"strconv"
)

// Format renders a result so that it can be placed back in the input
// buffer and parsed again. Magnitudes outside [1e-7, 1e21) use exponent
// notation; everything else is plain decimal.
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-7 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Preview evaluates expression for display while the user is still
// editing. Any failure yields ("", false), exactly as for empty input.
func Preview(expression string) (string, bool) {
	v, err := Evaluate(expression)
	if err != nil {
		return "", false
	}
	return Format(v), true
}
