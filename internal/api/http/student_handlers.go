package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/gatehall/gatehall/internal/auth/middleware"
	"github.com/gatehall/gatehall/internal/exam"
	"github.com/gatehall/gatehall/internal/rbac"
	"github.com/gatehall/gatehall/internal/storage"
)

func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.ListOpts{ActiveOnly: true, Limit: 50}
		// Admins may ask for inactive exams too.
		if r.URL.Query().Get("all") == "true" && rbac.Has(rbac.RoleFromContext(r.Context()), "exam:create") {
			opts.ActiveOnly = false
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
			opts.Limit = n
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n >= 0 {
			opts.Offset = n
		}
		list, err := store.ListExams(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GetPaperHandler streams the question-paper PDF for an exam. With ?url=true
// it returns a short-lived download URL instead of the bytes, which lets
// bucket-backed deployments serve papers without proxying them.
func GetPaperHandler(store exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if e.QuestionPaperKey == "" {
			http.Error(w, "no question paper", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("url") == "true" {
			u, err := bs.SignedURL(r.Context(), e.QuestionPaperKey)
			if err != nil {
				http.Error(w, "sign url: "+err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"url": u})
			return
		}
		rc, err := bs.Get(r.Context(), e.QuestionPaperKey)
		if err != nil {
			http.Error(w, "paper not found: "+err.Error(), http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.Copy(w, rc)
	}
}

// ListAttemptsHandler lists attempts newest first, filterable by exam_id and
// ?submitted=true. Callers without attempt:view-all only ever see their own,
// whatever user_id they ask for.
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.AttemptListOpts{
			ExamID:        strings.TrimSpace(r.URL.Query().Get("exam_id")),
			UserID:        strings.TrimSpace(r.URL.Query().Get("user_id")),
			SubmittedOnly: r.URL.Query().Get("submitted") == "true",
			Limit:         50,
		}
		if !rbac.Has(rbac.RoleFromContext(r.Context()), "attempt:view-all") {
			opts.UserID = auth.SubjectFromContext(r.Context())
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
			opts.Limit = n
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n >= 0 {
			opts.Offset = n
		}
		list, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		userID := auth.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "no subject", http.StatusUnauthorized)
			return
		}
		a, err := store.StartAttempt(r.Context(), examID, userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canSeeAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// SaveStateHandler stores the resumable UI blob for an in-flight attempt.
func SaveStateHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !ownAttempt(r, store, id) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var state json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.SaveState(r.Context(), id, state)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// SubmitAttemptHandler accepts {"<question number>": {value,status,...}} and
// finalizes the attempt.
func SubmitAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !ownAttempt(r, store, id) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var payload map[string]exam.SubmittedResponse
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		responses := make(map[int]exam.SubmittedResponse, len(payload))
		for k, v := range payload {
			n, err := strconv.Atoi(k)
			if err != nil || n <= 0 {
				http.Error(w, "bad question number: "+k, http.StatusBadRequest)
				return
			}
			responses[n] = v
		}
		a, err := store.SubmitAttempt(r.Context(), id, responses)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func GetResultHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canSeeAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := store.GetResult(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func canSeeAttempt(r *http.Request, a exam.Attempt) bool {
	if a.UserID == auth.SubjectFromContext(r.Context()) {
		return true
	}
	return rbac.Has(rbac.RoleFromContext(r.Context()), "attempt:view-all")
}

func ownAttempt(r *http.Request, store exam.Store, attemptID string) bool {
	a, err := store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		return true // let the store surface the real error downstream
	}
	return a.UserID == auth.SubjectFromContext(r.Context())
}
