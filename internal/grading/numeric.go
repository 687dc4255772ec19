package grading

import (
	"math"
	"strconv"
	"strings"
)

// natStrategy grades numerical-answer questions. The key is either a single
// numeric literal or an inclusive "min:max" range.
//
//	CorrectAnswer: "3.14"      // exact value, small tolerance
//	CorrectAnswer: "5.0:5.2"   // inclusive range
type natStrategy struct{}

// exactTol absorbs floating-point representation error on exact-value keys;
// it does not model measurement tolerance.
const exactTol = 1e-6

func (natStrategy) Evaluate(correctAnswer, input string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return false
	}

	correctAnswer = strings.TrimSpace(correctAnswer)
	if lo, hi, ok := strings.Cut(correctAnswer, ":"); ok {
		min, errLo := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		max, errHi := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if errLo != nil || errHi != nil {
			return false
		}
		return min <= v && v <= max
	}

	want, err := strconv.ParseFloat(correctAnswer, 64)
	if err != nil {
		return false
	}
	return math.Abs(v-want) < exactTol
}
