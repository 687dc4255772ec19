package exam

import "encoding/json"

// Palette statuses a response can carry. The scoring engine only cares
// whether the status contains "answered"; the rest exist for the UI palette.
const (
	StatusNotVisited              = "not_visited"
	StatusVisited                 = "visited"
	StatusAnswered                = "answered"
	StatusMarkedForReview         = "marked_for_review"
	StatusAnsweredMarkedForReview = "answered_marked_for_review"
)

// Exam is the exam-paper container: static artifacts plus the scoring
// metadata derived from its answer key.
type Exam struct {
	ID               string  `json:"id"` // slug
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	DurationMinutes  int     `json:"duration_minutes"`
	TotalMarks       float64 `json:"total_marks"`
	QuestionPaperKey string  `json:"question_paper_key,omitempty"` // blob key
	AnswerKeyKey     string  `json:"answer_key_key,omitempty"`     // blob key
	IsActive         bool    `json:"is_active"`
	CreatedAt        int64   `json:"created_at,omitempty"`

	Sections  []Section      `json:"sections,omitempty"`
	Questions []QuestionMeta `json:"questions,omitempty"`
}

// Section groups questions in the palette. Order is assigned in
// first-appearance order during key parsing, 1-based, unique per (exam, name).
type Section struct {
	ExamID string `json:"exam_id,omitempty"`
	Name   string `json:"name"`
	Order  int    `json:"order"`
}

// QuestionMeta holds what scoring needs about one question; question text
// stays in the question-paper PDF.
type QuestionMeta struct {
	ExamID        string  `json:"exam_id,omitempty"`
	Section       string  `json:"section,omitempty"`
	Number        int     `json:"question_number"`
	Type          string  `json:"question_type"`
	CorrectAnswer string  `json:"correct_answer,omitempty"` // stripped on student-safe reads
	MarksPositive float64 `json:"marks_positive"`
	MarksNegative float64 `json:"marks_negative"` // magnitude, not signed
}

// Attempt is one student session against one exam.
type Attempt struct {
	ID          string   `json:"id"`
	ExamID      string   `json:"exam_id"`
	UserID      string   `json:"user_id"`
	IsSubmitted bool     `json:"is_submitted"`
	TotalScore  *float64 `json:"total_score,omitempty"` // nil until scored

	// CurrentState is the resumable UI blob (timer, palette); opaque here.
	CurrentState json.RawMessage `json:"current_state,omitempty"`

	StartedAt   int64  `json:"started_at"`
	CompletedAt *int64 `json:"completed_at,omitempty"`
}

// Response is one student's answer to one question, unique per
// (attempt, question).
type Response struct {
	AttemptID        string  `json:"attempt_id,omitempty"`
	QuestionNumber   int     `json:"question_number"`
	UserInput        string  `json:"user_input"`
	Status           string  `json:"status"`
	TimeSpentSeconds int     `json:"time_spent_seconds,omitempty"`
	IsCorrect        *bool   `json:"is_correct,omitempty"` // nil until scored
	MarksAwarded     float64 `json:"marks_awarded"`
}

// SubmittedResponse is one entry of the submission payload.
type SubmittedResponse struct {
	Value            string `json:"value"`
	Status           string `json:"status"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}

// ExamSummary is the list-view projection of an exam.
type ExamSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	QuestionCount   int    `json:"question_count"`
	IsActive        bool   `json:"is_active"`
}

// KeyIngest reports what an answer-key ingestion committed.
type KeyIngest struct {
	Sections  []Section      `json:"sections"`
	Questions []QuestionMeta `json:"questions"`
}

// QuestionResult is the per-question slice of a score report.
type QuestionResult struct {
	QuestionNumber int     `json:"question_number"`
	UserInput      string  `json:"user_input"`
	Status         string  `json:"status"`
	IsCorrect      *bool   `json:"is_correct"`
	MarksAwarded   float64 `json:"marks_awarded"`
}

// AttemptResult is the score report for a submitted attempt.
type AttemptResult struct {
	AttemptID  string           `json:"attempt_id"`
	ExamID     string           `json:"exam_id"`
	TotalScore float64          `json:"total_score"`
	Questions  []QuestionResult `json:"questions"`
}
