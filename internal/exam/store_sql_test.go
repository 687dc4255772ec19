package exam

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/gatehall/gatehall/internal/db"
)

const sampleKey = `Section, Type, Question No, Key, Marks, Negative
Section A, MCQ, 1, A, 1, 0.33
Section A, MSQ, 2, A;B, 2, 0
Section B, NAT, 3, 5.0:5.2, 2, 0
`

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh, "sqlite")
}

func seedExam(t *testing.T, s *SQLStore, id string) {
	t.Helper()
	ctx := context.Background()
	if err := s.PutExam(ctx, Exam{ID: id, Title: "Mock Test 1", DurationMinutes: 180, IsActive: true}); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	if _, err := s.IngestAnswerKey(ctx, id, []byte(sampleKey)); err != nil {
		t.Fatalf("ingest key: %v", err)
	}
}

func TestIngestAndGetExamFull(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	e, err := s.GetExamFull(ctx, "mock-1")
	if err != nil {
		t.Fatalf("get full: %v", err)
	}
	if len(e.Sections) != 2 || len(e.Questions) != 3 {
		t.Fatalf("got %d sections, %d questions", len(e.Sections), len(e.Questions))
	}
	if e.Sections[0].Name != "Section A" || e.Sections[0].Order != 1 {
		t.Errorf("first section = %+v", e.Sections[0])
	}
	if e.Questions[2].Type != "NAT" || e.Questions[2].CorrectAnswer != "5.0:5.2" {
		t.Errorf("q3 = %+v", e.Questions[2])
	}
}

func TestGetExamStripsCorrectAnswers(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")

	e, err := s.GetExam(context.Background(), "mock-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, q := range e.Questions {
		if q.CorrectAnswer != "" {
			t.Errorf("q%d leaked correct answer %q", q.Number, q.CorrectAnswer)
		}
	}
}

func TestIngestReplacesAtomically(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	// A malformed re-upload leaves the old key intact.
	if _, err := s.IngestAnswerKey(ctx, "mock-1", []byte("Section, Type\nX, MCQ\n")); err == nil {
		t.Fatal("expected error for malformed key")
	}
	e, _ := s.GetExamFull(ctx, "mock-1")
	if len(e.Questions) != 3 {
		t.Fatalf("question set disturbed by failed ingest: %d", len(e.Questions))
	}

	// A valid re-upload replaces everything but keeps stored section order.
	replacement := "Section, Type, Question No, Key, Marks, Negative\n" +
		"Section B, NAT, 7, 1.5, 4, 1\n" +
		"Section A, MCQ, 8, C, 1, 0\n"
	ki, err := s.IngestAnswerKey(ctx, "mock-1", []byte(replacement))
	if err != nil {
		t.Fatalf("reingest: %v", err)
	}
	if len(ki.Questions) != 2 {
		t.Fatalf("got %d questions", len(ki.Questions))
	}
	e, _ = s.GetExamFull(ctx, "mock-1")
	orders := map[string]int{}
	for _, sec := range e.Sections {
		orders[sec.Name] = sec.Order
	}
	if orders["Section A"] != 1 || orders["Section B"] != 2 {
		t.Errorf("stored section order not reused: %v", orders)
	}
}

func TestStartAttemptInactiveExam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.PutExam(ctx, Exam{ID: "closed", Title: "Closed", DurationMinutes: 60, IsActive: false}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartAttempt(ctx, "closed", "alice"); err == nil {
		t.Fatal("expected error starting attempt on inactive exam")
	}
	if _, err := s.StartAttempt(ctx, "missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartAttemptResumesUnfinished(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	first, err := s.StartAttempt(ctx, "mock-1", "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	state := json.RawMessage(`{"current_question":3}`)
	if _, err := s.SaveState(ctx, first.ID, state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	// Starting again (browser crash, new tab) hands back the open attempt
	// with its saved state, not a fresh one.
	resumed, err := s.StartAttempt(ctx, "mock-1", "alice")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if resumed.ID != first.ID {
		t.Fatalf("got new attempt %s, want resumed %s", resumed.ID, first.ID)
	}
	if string(resumed.CurrentState) != string(state) {
		t.Errorf("resumed state = %s", resumed.CurrentState)
	}

	// Another student's open attempt is not shared.
	other, err := s.StartAttempt(ctx, "mock-1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Fatal("attempt shared across users")
	}

	// Once submitted, the next start opens a fresh attempt.
	if _, err := s.SubmitAttempt(ctx, first.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fresh, err := s.StartAttempt(ctx, "mock-1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == first.ID {
		t.Fatal("submitted attempt reopened")
	}
}

func TestListAttempts(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	seedExam(t, s, "mock-2")
	ctx := context.Background()

	a1, _ := s.StartAttempt(ctx, "mock-1", "alice")
	s.StartAttempt(ctx, "mock-2", "alice")
	s.StartAttempt(ctx, "mock-1", "bob")
	if _, err := s.SubmitAttempt(ctx, a1.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	mine, err := s.ListAttempts(ctx, AttemptListOpts{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("alice has %d attempts, want 2", len(mine))
	}
	for _, a := range mine {
		if a.UserID != "alice" {
			t.Errorf("foreign attempt in listing: %+v", a)
		}
	}

	history, err := s.ListAttempts(ctx, AttemptListOpts{UserID: "alice", SubmittedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != a1.ID {
		t.Fatalf("history = %+v, want just the submitted attempt", history)
	}

	byExam, err := s.ListAttempts(ctx, AttemptListOpts{ExamID: "mock-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byExam) != 2 {
		t.Fatalf("exam filter returned %d attempts, want 2", len(byExam))
	}
}

func TestSubmitScoresAllCorrect(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	a, err := s.StartAttempt(ctx, "mock-1", "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	a, err = s.SubmitAttempt(ctx, a.ID, map[int]SubmittedResponse{
		1: {Value: "A", Status: StatusAnswered},
		2: {Value: "A,B", Status: StatusAnswered},
		3: {Value: "5.1", Status: StatusAnswered},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !a.IsSubmitted || a.TotalScore == nil {
		t.Fatal("attempt not finalized")
	}
	if math.Abs(*a.TotalScore-5.0) > 1e-9 {
		t.Errorf("total = %v, want 5.0", *a.TotalScore)
	}
	if a.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestSubmitScoresWithPenalty(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	a, _ := s.StartAttempt(ctx, "mock-1", "bob")
	a, err := s.SubmitAttempt(ctx, a.ID, map[int]SubmittedResponse{
		1: {Value: "B", Status: StatusAnswered},   // wrong MCQ: -0.33
		2: {Value: "A", Status: StatusAnswered},   // wrong MSQ, no penalty
		3: {Value: "6.0", Status: StatusAnswered}, // out of range, no penalty
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if math.Abs(*a.TotalScore-(-0.33)) > 1e-9 {
		t.Errorf("total = %v, want -0.33", *a.TotalScore)
	}

	res, err := s.GetResult(ctx, a.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(res.Questions) != 3 {
		t.Fatalf("got %d question results", len(res.Questions))
	}
	for _, q := range res.Questions {
		if q.IsCorrect == nil || *q.IsCorrect {
			t.Errorf("q%d should be scored incorrect", q.QuestionNumber)
		}
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	a, _ := s.StartAttempt(ctx, "mock-1", "carol")
	first, err := s.SubmitAttempt(ctx, a.ID, map[int]SubmittedResponse{
		1: {Value: "A", Status: StatusAnswered},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Re-submitting with different answers must not re-score.
	second, err := s.SubmitAttempt(ctx, a.ID, map[int]SubmittedResponse{
		1: {Value: "B", Status: StatusAnswered},
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if *first.TotalScore != *second.TotalScore {
		t.Errorf("totals differ: %v vs %v", *first.TotalScore, *second.TotalScore)
	}
}

func TestSubmitUnknownQuestionFails(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	a, _ := s.StartAttempt(ctx, "mock-1", "dave")
	if _, err := s.SubmitAttempt(ctx, a.ID, map[int]SubmittedResponse{
		99: {Value: "A", Status: StatusAnswered},
	}); err == nil {
		t.Fatal("expected error for unknown question number")
	}
	// The failed submit must not have flipped the attempt.
	got, err := s.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsSubmitted {
		t.Error("attempt flipped to submitted by failed submit")
	}
}

func TestSaveStateAndSubmitGuards(t *testing.T) {
	s := newTestStore(t)
	seedExam(t, s, "mock-1")
	ctx := context.Background()

	a, _ := s.StartAttempt(ctx, "mock-1", "erin")
	state := json.RawMessage(`{"current_question":2,"time_left":7200}`)
	a2, err := s.SaveState(ctx, a.ID, state)
	if err != nil {
		t.Fatalf("save state: %v", err)
	}
	if string(a2.CurrentState) != string(state) {
		t.Errorf("state = %s", a2.CurrentState)
	}

	if _, err := s.GetResult(ctx, a.ID); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("result before submit: %v, want ErrNotSubmitted", err)
	}

	if _, err := s.SubmitAttempt(ctx, a.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.SaveState(ctx, a.ID, state); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("save after submit: %v, want ErrAlreadySubmitted", err)
	}
}

func TestListExamsActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutExam(ctx, Exam{ID: "live", Title: "Live", DurationMinutes: 60, IsActive: true})
	_ = s.PutExam(ctx, Exam{ID: "draft", Title: "Draft", DurationMinutes: 60, IsActive: false})

	list, err := s.ListExams(ctx, ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "live" {
		t.Errorf("active-only list = %+v", list)
	}

	all, err := s.ListExams(ctx, ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("full list = %+v", all)
	}
}
