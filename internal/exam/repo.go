package exam

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrNotSubmitted     = errors.New("attempt not submitted")
)

type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// AttemptListOpts filters an attempt listing. Empty fields match everything.
type AttemptListOpts struct {
	ExamID        string
	UserID        string
	SubmittedOnly bool
	Limit         int
	Offset        int
}

// Store is the persistence surface the portal core depends on.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)     // student-safe (no correct answers)
	GetExamFull(ctx context.Context, id string) (Exam, error) // admin view
	ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error)
	SetAnswerKeyBlob(ctx context.Context, examID, blobKey string) error

	// IngestAnswerKey parses raw key bytes and atomically replaces the
	// exam's sections and question metadata: concurrent readers observe
	// either the fully-old or fully-new set, never a mix. A parse failure
	// leaves the prior set untouched.
	IngestAnswerKey(ctx context.Context, examID string, raw []byte) (KeyIngest, error)

	// StartAttempt opens an attempt for (exam, user), resuming the earliest
	// unfinished one if the user already has an attempt in flight.
	StartAttempt(ctx context.Context, examID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// ListAttempts returns matching attempts, most recently started first.
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	SaveState(ctx context.Context, attemptID string, state json.RawMessage) (Attempt, error)

	// SubmitAttempt upserts the submitted responses, scores every response
	// row, and sets the attempt total, all atomically. The submit-then-score
	// sequence runs at most once per attempt; submitting an already-submitted
	// attempt returns it unchanged.
	SubmitAttempt(ctx context.Context, attemptID string, responses map[int]SubmittedResponse) (Attempt, error)

	GetResult(ctx context.Context, attemptID string) (AttemptResult, error)
}
