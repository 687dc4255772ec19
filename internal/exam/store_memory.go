package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatehall/gatehall/internal/answerkey"
	"github.com/gatehall/gatehall/internal/grading"
)

// memoryStore is a mutex-guarded Store for tests and single-process dev runs.
// It mirrors SQLStore semantics, including atomic key replacement and the
// one-shot submit guard.
type memoryStore struct {
	mu        sync.RWMutex
	exams     map[string]Exam
	attempts  map[string]Attempt
	responses map[string]map[int]Response // attemptID -> question number -> response
}

func NewInMemoryStore() Store {
	return &memoryStore{
		exams:     map[string]Exam{},
		attempts:  map[string]Attempt{},
		responses: map[string]map[int]Response{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	if old, ok := m.exams[e.ID]; ok {
		e.Sections = old.Sections
		e.Questions = old.Questions
		e.CreatedAt = old.CreatedAt
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := m.GetExamFull(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	qs := make([]QuestionMeta, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].CorrectAnswer = ""
	}
	e.Questions = qs
	return e, nil
}

func (m *memoryStore) GetExamFull(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("exam %q: %w", id, ErrNotFound)
	}
	return e, nil
}

func (m *memoryStore) ListExams(_ context.Context, opts ListOpts) ([]ExamSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []ExamSummary{}
	for _, e := range m.exams {
		if opts.ActiveOnly && !e.IsActive {
			continue
		}
		out = append(out, ExamSummary{
			ID:              e.ID,
			Title:           e.Title,
			DurationMinutes: e.DurationMinutes,
			QuestionCount:   len(e.Questions),
			IsActive:        e.IsActive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) SetAnswerKeyBlob(_ context.Context, examID, blobKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return fmt.Errorf("exam %q: %w", examID, ErrNotFound)
	}
	e.AnswerKeyKey = blobKey
	m.exams[examID] = e
	return nil
}

func (m *memoryStore) IngestAnswerKey(_ context.Context, examID string, raw []byte) (KeyIngest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return KeyIngest{}, fmt.Errorf("exam %q: %w", examID, ErrNotFound)
	}

	existing := map[string]int{}
	for _, sec := range e.Sections {
		existing[sec.Name] = sec.Order
	}
	key, err := answerkey.Parse(raw, existing)
	if err != nil {
		return KeyIngest{}, err
	}

	ingest := KeyIngest{}
	for _, sec := range key.Sections {
		ingest.Sections = append(ingest.Sections, Section{ExamID: examID, Name: sec.Name, Order: sec.Order})
	}
	for _, q := range key.Questions {
		ingest.Questions = append(ingest.Questions, QuestionMeta{
			ExamID:        examID,
			Section:       q.Section,
			Number:        q.Number,
			Type:          q.Type,
			CorrectAnswer: q.CorrectAnswer,
			MarksPositive: q.MarksPositive,
			MarksNegative: q.MarksNegative,
		})
	}
	e.Sections = ingest.Sections
	e.Questions = ingest.Questions
	m.exams[examID] = e
	return ingest, nil
}

func (m *memoryStore) StartAttempt(_ context.Context, examID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return Attempt{}, fmt.Errorf("exam %q: %w", examID, ErrNotFound)
	}
	if !e.IsActive {
		return Attempt{}, fmt.Errorf("exam %q is not active", examID)
	}
	var open *Attempt
	for id := range m.attempts {
		a := m.attempts[id]
		if a.ExamID != examID || a.UserID != userID || a.IsSubmitted {
			continue
		}
		if open == nil || a.StartedAt < open.StartedAt {
			open = &a
		}
	}
	if open != nil {
		return *open, nil
	}
	a := Attempt{
		ID:           uuid.NewString(),
		ExamID:       examID,
		UserID:       userID,
		CurrentState: json.RawMessage(`{}`),
		StartedAt:    time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	m.responses[a.ID] = map[int]Response{}
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.SubmittedOnly && !a.IsSubmitted {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) SaveState(_ context.Context, attemptID string, state json.RawMessage) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", attemptID, ErrNotFound)
	}
	if a.IsSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}
	a.CurrentState = state
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) SubmitAttempt(_ context.Context, attemptID string, responses map[int]SubmittedResponse) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", attemptID, ErrNotFound)
	}
	if a.IsSubmitted {
		return a, nil
	}
	e := m.exams[a.ExamID]
	byNumber := map[int]QuestionMeta{}
	for _, q := range e.Questions {
		byNumber[q.Number] = q
	}

	saved := m.responses[attemptID]
	for num, sr := range responses {
		if _, ok := byNumber[num]; !ok {
			return Attempt{}, fmt.Errorf("unknown question number %d for exam %q", num, a.ExamID)
		}
		status := sr.Status
		if status == "" {
			status = StatusNotVisited
		}
		saved[num] = Response{
			AttemptID:        attemptID,
			QuestionNumber:   num,
			UserInput:        sr.Value,
			Status:           status,
			TimeSpentSeconds: sr.TimeSpentSeconds,
		}
	}

	total := 0.0
	for num, resp := range saved {
		q := byNumber[num]
		r := grading.Score(grading.Question{
			Type:          q.Type,
			CorrectAnswer: q.CorrectAnswer,
			MarksPositive: q.MarksPositive,
			MarksNegative: q.MarksNegative,
		}, grading.Response{Input: resp.UserInput, Status: resp.Status})
		correct := r.Correct
		resp.IsCorrect = &correct
		resp.MarksAwarded = r.Marks
		saved[num] = resp
		total += r.Marks
	}

	now := time.Now().Unix()
	a.IsSubmitted = true
	a.TotalScore = &total
	a.CompletedAt = &now
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) GetResult(_ context.Context, attemptID string) (AttemptResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return AttemptResult{}, fmt.Errorf("attempt %q: %w", attemptID, ErrNotFound)
	}
	if !a.IsSubmitted || a.TotalScore == nil {
		return AttemptResult{}, ErrNotSubmitted
	}
	out := AttemptResult{AttemptID: a.ID, ExamID: a.ExamID, TotalScore: *a.TotalScore}
	nums := make([]int, 0, len(m.responses[attemptID]))
	for num := range m.responses[attemptID] {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		r := m.responses[attemptID][num]
		out.Questions = append(out.Questions, QuestionResult{
			QuestionNumber: r.QuestionNumber,
			UserInput:      r.UserInput,
			Status:         r.Status,
			IsCorrect:      r.IsCorrect,
			MarksAwarded:   r.MarksAwarded,
		})
	}
	return out, nil
}
