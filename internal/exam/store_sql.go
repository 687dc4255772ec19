package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatehall/gatehall/internal/answerkey"
	"github.com/gatehall/gatehall/internal/grading"
)

// SQLStore implements Store over database/sql. Placeholders use the $N form,
// which both the pgx and modernc sqlite drivers accept.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams
		(id,title,description,duration_minutes,total_marks,question_paper_key,answer_key_key,is_active,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title, description=EXCLUDED.description,
			duration_minutes=EXCLUDED.duration_minutes, total_marks=EXCLUDED.total_marks,
			question_paper_key=EXCLUDED.question_paper_key, answer_key_key=EXCLUDED.answer_key_key,
			is_active=EXCLUDED.is_active`,
		e.ID, e.Title, e.Description, e.DurationMinutes, e.TotalMarks,
		e.QuestionPaperKey, e.AnswerKeyKey, e.IsActive, e.CreatedAt)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamFull(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	// Never serve correct answers to students.
	for i := range e.Questions {
		e.Questions[i].CorrectAnswer = ""
	}
	return e, nil
}

func (s *SQLStore) GetExamFull(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,description,duration_minutes,total_marks,
		question_paper_key,answer_key_key,is_active,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.TotalMarks,
		&e.QuestionPaperKey, &e.AnswerKeyKey, &e.IsActive, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, fmt.Errorf("exam %q: %w", id, ErrNotFound)
		}
		return Exam{}, err
	}

	secRows, err := s.db.QueryContext(ctx, `SELECT exam_id,name,ord FROM sections WHERE exam_id=$1 ORDER BY ord`, id)
	if err != nil {
		return Exam{}, err
	}
	defer secRows.Close()
	for secRows.Next() {
		var sec Section
		if err := secRows.Scan(&sec.ExamID, &sec.Name, &sec.Order); err != nil {
			return Exam{}, err
		}
		e.Sections = append(e.Sections, sec)
	}
	if err := secRows.Err(); err != nil {
		return Exam{}, err
	}

	qRows, err := s.db.QueryContext(ctx, `SELECT exam_id,section_name,question_number,question_type,
		correct_answer,marks_positive,marks_negative FROM question_meta WHERE exam_id=$1 ORDER BY question_number`, id)
	if err != nil {
		return Exam{}, err
	}
	defer qRows.Close()
	for qRows.Next() {
		var q QuestionMeta
		if err := qRows.Scan(&q.ExamID, &q.Section, &q.Number, &q.Type,
			&q.CorrectAnswer, &q.MarksPositive, &q.MarksNegative); err != nil {
			return Exam{}, err
		}
		e.Questions = append(e.Questions, q)
	}
	return e, qRows.Err()
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	q := `SELECT e.id, e.title, e.duration_minutes, e.is_active,
			(SELECT COUNT(*) FROM question_meta qm WHERE qm.exam_id = e.id)
		FROM exams e`
	args := []any{}
	if opts.ActiveOnly {
		q += ` WHERE e.is_active = $1`
		args = append(args, true)
	}
	q += fmt.Sprintf(` ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExamSummary{}
	for rows.Next() {
		var es ExamSummary
		if err := rows.Scan(&es.ID, &es.Title, &es.DurationMinutes, &es.IsActive, &es.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetAnswerKeyBlob(ctx context.Context, examID, blobKey string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET answer_key_key=$1 WHERE id=$2`, blobKey, examID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exam %q: %w", examID, ErrNotFound)
	}
	return nil
}

// IngestAnswerKey parses raw and replaces the exam's sections and question
// metadata inside one transaction, so readers see the old set or the new set,
// never a mix. Section names already stored keep their display order.
func (s *SQLStore) IngestAnswerKey(ctx context.Context, examID string, raw []byte) (KeyIngest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return KeyIngest{}, err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM exams WHERE id=$1`, examID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KeyIngest{}, fmt.Errorf("exam %q: %w", examID, ErrNotFound)
		}
		return KeyIngest{}, err
	}

	existing := map[string]int{}
	rows, err := tx.QueryContext(ctx, `SELECT name, ord FROM sections WHERE exam_id=$1`, examID)
	if err != nil {
		return KeyIngest{}, err
	}
	for rows.Next() {
		var name string
		var ord int
		if err := rows.Scan(&name, &ord); err != nil {
			rows.Close()
			return KeyIngest{}, err
		}
		existing[name] = ord
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return KeyIngest{}, err
	}

	key, err := answerkey.Parse(raw, existing)
	if err != nil {
		return KeyIngest{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_meta WHERE exam_id=$1`, examID); err != nil {
		return KeyIngest{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE exam_id=$1`, examID); err != nil {
		return KeyIngest{}, err
	}

	ingest := KeyIngest{}
	for _, sec := range key.Sections {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sections (exam_id,name,ord) VALUES ($1,$2,$3)`,
			examID, sec.Name, sec.Order); err != nil {
			return KeyIngest{}, err
		}
		ingest.Sections = append(ingest.Sections, Section{ExamID: examID, Name: sec.Name, Order: sec.Order})
	}
	for _, q := range key.Questions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO question_meta
			(exam_id,section_name,question_number,question_type,correct_answer,marks_positive,marks_negative)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			examID, q.Section, q.Number, q.Type, q.CorrectAnswer, q.MarksPositive, q.MarksNegative); err != nil {
			return KeyIngest{}, err
		}
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

	if err := tx.Commit(); err != nil {
		return KeyIngest{}, err
	}
	return ingest, nil
}

func (s *SQLStore) StartAttempt(ctx context.Context, examID, userID string) (Attempt, error) {
	var active bool
	if err := s.db.QueryRowContext(ctx, `SELECT is_active FROM exams WHERE id=$1`, examID).Scan(&active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("exam %q: %w", examID, ErrNotFound)
		}
		return Attempt{}, err
	}
	if !active {
		return Attempt{}, fmt.Errorf("exam %q is not active", examID)
	}

	// Resume an unfinished attempt instead of opening a second one, so a
	// student who lost their browser gets their current_state back.
	var openID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM attempts
		WHERE exam_id=$1 AND user_id=$2 AND is_submitted=$3
		ORDER BY started_at LIMIT 1`, examID, userID, false).Scan(&openID)
	if err == nil {
		return s.GetAttempt(ctx, openID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, err
	}

	a := Attempt{
		ID:           uuid.NewString(),
		ExamID:       examID,
		UserID:       userID,
		CurrentState: json.RawMessage(`{}`),
		StartedAt:    time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,user_id,is_submitted,total_score,current_state,started_at,completed_at)
		VALUES ($1,$2,$3,$4,NULL,$5,$6,NULL)`,
		a.ID, a.ExamID, a.UserID, false, string(a.CurrentState), a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.getAttempt(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) getAttempt(ctx context.Context, q querier, id string) (Attempt, error) {
	row := q.QueryRowContext(ctx, `SELECT id,exam_id,user_id,is_submitted,total_score,current_state,started_at,completed_at
		FROM attempts WHERE id=$1`, id)
	var (
		a         Attempt
		score     sql.NullFloat64
		state     string
		completed sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.IsSubmitted, &score, &state, &a.StartedAt, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
		}
		return Attempt{}, err
	}
	if score.Valid {
		a.TotalScore = &score.Float64
	}
	if completed.Valid {
		a.CompletedAt = &completed.Int64
	}
	a.CurrentState = json.RawMessage(state)
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	q := `SELECT id,exam_id,user_id,is_submitted,total_score,current_state,started_at,completed_at
		FROM attempts`
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if opts.ExamID != "" {
		add("exam_id=$%d", opts.ExamID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.SubmittedOnly {
		add("is_submitted=$%d", true)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY started_at DESC LIMIT %d OFFSET %d", opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var (
			a         Attempt
			score     sql.NullFloat64
			state     string
			completed sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.ExamID, &a.UserID, &a.IsSubmitted, &score, &state, &a.StartedAt, &completed); err != nil {
			return nil, err
		}
		if score.Valid {
			a.TotalScore = &score.Float64
		}
		if completed.Valid {
			a.CompletedAt = &completed.Int64
		}
		a.CurrentState = json.RawMessage(state)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveState(ctx context.Context, attemptID string, state json.RawMessage) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.IsSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE attempts SET current_state=$1 WHERE id=$2`,
		string(state), attemptID); err != nil {
		return Attempt{}, err
	}
	a.CurrentState = state
	return a, nil
}

// SubmitAttempt flips is_submitted first (checked-and-set inside the
// transaction, so two racing submits cannot both score), then upserts the
// submitted responses, scores every response row, and writes the total.
func (s *SQLStore) SubmitAttempt(ctx context.Context, attemptID string, responses map[int]SubmittedResponse) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	a, err := s.getAttempt(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.IsSubmitted {
		return a, nil
	}

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx, `UPDATE attempts SET is_submitted=$1, completed_at=$2
		WHERE id=$3 AND is_submitted=$4`, true, now, attemptID, false)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to a concurrent submit.
		return s.GetAttempt(ctx, attemptID)
	}

	questions, err := s.questionsByNumber(ctx, tx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}

	for num, sr := range responses {
		if _, ok := questions[num]; !ok {
			return Attempt{}, fmt.Errorf("unknown question number %d for exam %q", num, a.ExamID)
		}
		status := sr.Status
		if status == "" {
			status = StatusNotVisited
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO responses
			(attempt_id,question_number,user_input,status,time_spent_seconds,is_correct,marks_awarded)
			VALUES ($1,$2,$3,$4,$5,NULL,0)
			ON CONFLICT (attempt_id,question_number) DO UPDATE SET
				user_input=EXCLUDED.user_input, status=EXCLUDED.status,
				time_spent_seconds=EXCLUDED.time_spent_seconds`,
			attemptID, num, sr.Value, status, sr.TimeSpentSeconds); err != nil {
			return Attempt{}, err
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT question_number,user_input,status FROM responses
		WHERE attempt_id=$1 ORDER BY question_number`, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	type scored struct {
		num     int
		correct bool
		marks   float64
	}
	var results []scored
	total := 0.0
	for rows.Next() {
		var (
			num           int
			input, status string
		)
		if err := rows.Scan(&num, &input, &status); err != nil {
			rows.Close()
			return Attempt{}, err
		}
		q, ok := questions[num]
		if !ok {
			continue // question set replaced since the response was written
		}
		r := grading.Score(grading.Question{
			Type:          q.Type,
			CorrectAnswer: q.CorrectAnswer,
			MarksPositive: q.MarksPositive,
			MarksNegative: q.MarksNegative,
		}, grading.Response{Input: input, Status: status})
		results = append(results, scored{num: num, correct: r.Correct, marks: r.Marks})
		total += r.Marks
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Attempt{}, err
	}

	for _, r := range results {
		if _, err := tx.ExecContext(ctx, `UPDATE responses SET is_correct=$1, marks_awarded=$2
			WHERE attempt_id=$3 AND question_number=$4`, r.correct, r.marks, attemptID, r.num); err != nil {
			return Attempt{}, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET total_score=$1 WHERE id=$2`, total, attemptID); err != nil {
		return Attempt{}, err
	}

	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}

	a.IsSubmitted = true
	a.TotalScore = &total
	a.CompletedAt = &now
	return a, nil
}

type queryerCtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) questionsByNumber(ctx context.Context, q queryerCtx, examID string) (map[int]QuestionMeta, error) {
	rows, err := q.QueryContext(ctx, `SELECT question_number,question_type,correct_answer,marks_positive,marks_negative
		FROM question_meta WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]QuestionMeta{}
	for rows.Next() {
		var qm QuestionMeta
		if err := rows.Scan(&qm.Number, &qm.Type, &qm.CorrectAnswer, &qm.MarksPositive, &qm.MarksNegative); err != nil {
			return nil, err
		}
		out[qm.Number] = qm
	}
	return out, rows.Err()
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID string) (AttemptResult, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	if !a.IsSubmitted || a.TotalScore == nil {
		return AttemptResult{}, ErrNotSubmitted
	}

	rows, err := s.db.QueryContext(ctx, `SELECT question_number,user_input,status,is_correct,marks_awarded
		FROM responses WHERE attempt_id=$1 ORDER BY question_number`, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	defer rows.Close()

	out := AttemptResult{AttemptID: a.ID, ExamID: a.ExamID, TotalScore: *a.TotalScore}
	for rows.Next() {
		var (
			qr      QuestionResult
			correct sql.NullBool
		)
		if err := rows.Scan(&qr.QuestionNumber, &qr.UserInput, &qr.Status, &correct, &qr.MarksAwarded); err != nil {
			return AttemptResult{}, err
		}
		if correct.Valid {
			qr.IsCorrect = &correct.Bool
		}
		out.Questions = append(out.Questions, qr)
	}
	return out, rows.Err()
}
