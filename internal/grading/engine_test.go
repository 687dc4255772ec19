package grading

import "testing"

func TestScoreMCQ(t *testing.T) {
	q := Question{Type: "MCQ", CorrectAnswer: "A", MarksPositive: 1, MarksNegative: 0.33}

	tests := []struct {
		name    string
		input   string
		status  string
		correct bool
		marks   float64
	}{
		{name: "exact match", input: "A", status: "answered", correct: true, marks: 1},
		{name: "case insensitive", input: "a", status: "answered", correct: true, marks: 1},
		{name: "whitespace trimmed", input: " A ", status: "answered", correct: true, marks: 1},
		{name: "wrong answered penalized", input: "B", status: "answered", correct: false, marks: -0.33},
		{name: "wrong answered+review penalized", input: "B", status: "answered_marked_for_review", correct: false, marks: -0.33},
		{name: "wrong but only reviewed", input: "B", status: "marked_for_review", correct: false, marks: 0},
		{name: "empty input never penalized", input: "", status: "answered", correct: false, marks: 0},
		{name: "not visited", input: "", status: "not_visited", correct: false, marks: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(q, Response{Input: tc.input, Status: tc.status})
			if got.Correct != tc.correct || got.Marks != tc.marks {
				t.Fatalf("Score = %+v, want correct=%v marks=%v", got, tc.correct, tc.marks)
			}
		})
	}
}

func TestScoreMSQ(t *testing.T) {
	q := Question{Type: "MSQ", CorrectAnswer: "A;B", MarksPositive: 2, MarksNegative: 0}

	tests := []struct {
		name    string
		input   string
		correct bool
	}{
		{name: "comma input matches semicolon key", input: "A,B", correct: true},
		{name: "order irrelevant", input: "B,A", correct: true},
		{name: "duplicates collapse", input: "B,A,A", correct: true},
		{name: "lowercase tokens", input: "b, a", correct: true},
		{name: "partial overlap is wrong", input: "A", correct: false},
		{name: "superset is wrong", input: "A,B,C", correct: false},
		{name: "disjoint is wrong", input: "C,D", correct: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(q, Response{Input: tc.input, Status: "answered"})
			if got.Correct != tc.correct {
				t.Fatalf("Score(%q) correct = %v, want %v", tc.input, got.Correct, tc.correct)
			}
		})
	}
}

func TestScoreMSQNegativeMarkingAppliesToAnyType(t *testing.T) {
	// Canonical policy: the penalty follows marks_negative, not the type.
	q := Question{Type: "MSQ", CorrectAnswer: "A;B", MarksPositive: 2, MarksNegative: 0.5}
	got := Score(q, Response{Input: "A", Status: "answered"})
	if got.Correct || got.Marks != -0.5 {
		t.Fatalf("Score = %+v, want incorrect with -0.5", got)
	}
}

func TestScoreNATRange(t *testing.T) {
	q := Question{Type: "NAT", CorrectAnswer: "5.0:5.2", MarksPositive: 2}

	for _, in := range []string{"5.0", "5.1", "5.2"} {
		if got := Score(q, Response{Input: in, Status: "answered"}); !got.Correct || got.Marks != 2 {
			t.Fatalf("Score(%q) = %+v, want correct", in, got)
		}
	}
	for _, in := range []string{"4.999", "5.201", "6.0"} {
		if got := Score(q, Response{Input: in, Status: "answered"}); got.Correct || got.Marks != 0 {
			t.Fatalf("Score(%q) = %+v, want incorrect with no penalty", in, got)
		}
	}
}

func TestScoreNATExact(t *testing.T) {
	q := Question{Type: "NAT", CorrectAnswer: "3.14", MarksPositive: 1, MarksNegative: 1}

	if got := Score(q, Response{Input: "3.140000", Status: "answered"}); !got.Correct {
		t.Fatalf("Score = %+v, want correct", got)
	}
	if got := Score(q, Response{Input: "3.15", Status: "answered"}); got.Correct || got.Marks != -1 {
		t.Fatalf("Score = %+v, want incorrect with -1", got)
	}
}

func TestScoreNATMalformedInputIsJustWrong(t *testing.T) {
	q := Question{Type: "NAT", CorrectAnswer: "5.0:5.2", MarksPositive: 2, MarksNegative: 0.5}
	got := Score(q, Response{Input: "five point one", Status: "answered"})
	if got.Correct {
		t.Fatal("malformed input scored correct")
	}
	if got.Marks != -0.5 {
		t.Fatalf("marks = %v, want -0.5 (attempted and wrong)", got.Marks)
	}
}

func TestScoreMalformedKeyNeverPanics(t *testing.T) {
	for _, q := range []Question{
		{Type: "NAT", CorrectAnswer: "low:high", MarksPositive: 1},
		{Type: "NAT", CorrectAnswer: "", MarksPositive: 1},
		{Type: "MSQ", CorrectAnswer: ";;", MarksPositive: 1},
		{Type: "XYZ", CorrectAnswer: "A", MarksPositive: 1},
	} {
		if got := Score(q, Response{Input: "1", Status: "answered"}); got.Correct {
			t.Fatalf("Score(%+v) unexpectedly correct", q)
		}
	}
}

func TestScoreIsPure(t *testing.T) {
	q := Question{Type: "MCQ", CorrectAnswer: "C", MarksPositive: 1, MarksNegative: 0.25}
	r := Response{Input: "C", Status: "answered"}
	first := Score(q, r)
	for i := 0; i < 3; i++ {
		if got := Score(q, r); got != first {
			t.Fatalf("Score not deterministic: %+v vs %+v", got, first)
		}
	}
}
