package grading

import "strings"

// Question is the minimal view of question metadata needed for scoring.
type Question struct {
	Type          string // answerkey.TypeMCQ / TypeMSQ / TypeNAT
	CorrectAnswer string
	MarksPositive float64
	MarksNegative float64
}

// Response is a student's raw input for one question plus its palette status.
type Response struct {
	Input  string
	Status string
}

// Result is the outcome of scoring a single response.
type Result struct {
	Correct bool
	Marks   float64
}

// Strategy decides correctness for one question type. Student input is
// untrusted free text, so a strategy never fails: malformed input is simply
// not correct.
type Strategy interface {
	Evaluate(correctAnswer, input string) bool
}

var strategies = map[string]Strategy{
	"MCQ": mcqStrategy{},
	"MSQ": msqStrategy{},
	"NAT": natStrategy{},
}

// Score evaluates one response against its question metadata. It is a pure
// function of its inputs. Rules, in priority order:
//
//  1. Empty input is unattempted: not correct, zero marks, no penalty.
//  2. Correctness is decided by the type's strategy.
//  3. Correct earns MarksPositive. Incorrect earns -MarksNegative when the
//     question carries a penalty and the status says the question was
//     answered; otherwise zero.
func Score(q Question, r Response) Result {
	input := strings.TrimSpace(r.Input)
	if input == "" {
		return Result{}
	}

	s, ok := strategies[q.Type]
	if !ok {
		return Result{}
	}
	if s.Evaluate(q.CorrectAnswer, input) {
		return Result{Correct: true, Marks: q.MarksPositive}
	}
	if q.MarksNegative > 0 && attempted(r.Status) {
		return Result{Marks: -q.MarksNegative}
	}
	return Result{}
}

// attempted covers both "answered" and "answered_marked_for_review".
func attempted(status string) bool {
	return strings.Contains(status, "answered")
}

type mcqStrategy struct{}

func (mcqStrategy) Evaluate(correctAnswer, input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), strings.TrimSpace(correctAnswer))
}

type msqStrategy struct{}

// MSQ is graded all-or-nothing on set equality: order irrelevant, duplicates
// collapse, tokens split on comma or semicolon.
func (msqStrategy) Evaluate(correctAnswer, input string) bool {
	got := tokenSet(input)
	want := tokenSet(correctAnswer)
	if len(want) == 0 || len(got) != len(want) {
		return false
	}
	for tok := range want {
		if _, ok := got[tok]; !ok {
			return false
		}
	}
	return true
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Split(strings.ReplaceAll(s, ";", ","), ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}
