package http

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gatehall/gatehall/internal/exam"
	"github.com/gatehall/gatehall/internal/pdfconv"
	"github.com/gatehall/gatehall/internal/storage"
)

const maxUploadBytes = 32 << 20

// CreateExamHandler accepts a multipart form:
//
//	id, title, description, duration_minutes, is_active  (fields)
//	question_paper                                        (PDF or JPG/PNG page)
//	answer_key                                            (CSV, optional)
//
// Image papers are converted to single-page PDFs before storage. When an
// answer key is attached it is ingested in the same request; a malformed key
// fails the whole request and nothing is committed for it.
func CreateExamHandler(store exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "bad multipart form", http.StatusBadRequest)
			return
		}
		e := exam.Exam{
			ID:          strings.TrimSpace(r.FormValue("id")),
			Title:       strings.TrimSpace(r.FormValue("title")),
			Description: r.FormValue("description"),
			IsActive:    r.FormValue("is_active") != "false",
			CreatedAt:   time.Now().Unix(),
		}
		if e.ID == "" || e.Title == "" {
			http.Error(w, "id and title required", http.StatusBadRequest)
			return
		}
		if n, err := strconv.Atoi(r.FormValue("duration_minutes")); err == nil && n > 0 {
			e.DurationMinutes = n
		}

		if f, hdr, err := r.FormFile("question_paper"); err == nil {
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
			if err != nil {
				http.Error(w, "read question paper", http.StatusBadRequest)
				return
			}
			ext := strings.ToLower(filepath.Ext(hdr.Filename))
			if pdfconv.IsImage(ext) {
				data, err = pdfconv.Convert(data)
				if err != nil {
					http.Error(w, "convert image to pdf: "+err.Error(), http.StatusBadRequest)
					return
				}
			}
			key := "exams/" + e.ID + "/paper.pdf"
			if _, err := bs.Put(r.Context(), key, bytes.NewReader(data)); err != nil {
				http.Error(w, "store paper: "+err.Error(), http.StatusInternalServerError)
				return
			}
			e.QuestionPaperKey = key
		}

		var rawKey []byte
		if f, _, err := r.FormFile("answer_key"); err == nil {
			defer f.Close()
			rawKey, err = io.ReadAll(io.LimitReader(f, maxUploadBytes))
			if err != nil {
				http.Error(w, "read answer key", http.StatusBadRequest)
				return
			}
		}

		if err := store.PutExam(r.Context(), e); err != nil {
			writeErr(w, err)
			return
		}

		var ingest *exam.KeyIngest
		if len(rawKey) > 0 {
			ki, err := store.IngestAnswerKey(r.Context(), e.ID, rawKey)
			if err != nil {
				writeErr(w, err)
				return
			}
			ingest = &ki
			key := "exams/" + e.ID + "/key.csv"
			if _, err := bs.Put(r.Context(), key, bytes.NewReader(rawKey)); err != nil {
				http.Error(w, "store key: "+err.Error(), http.StatusInternalServerError)
				return
			}
			if err := store.SetAnswerKeyBlob(r.Context(), e.ID, key); err != nil {
				writeErr(w, err)
				return
			}
		}

		log.Info().Str("exam", e.ID).Bool("with_key", ingest != nil).Msg("exam created")
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id":     e.ID,
			"ingest": ingest,
		})
	}
}

// ReplaceKeyHandler re-uploads an exam's answer key. The body is the raw CSV
// (or a multipart form with an answer_key part). Old sections and question
// metadata are replaced atomically.
func ReplaceKeyHandler(store exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")

		var raw []byte
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				http.Error(w, "bad multipart form", http.StatusBadRequest)
				return
			}
			f, _, err := r.FormFile("answer_key")
			if err != nil {
				http.Error(w, "answer_key file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			raw, err = io.ReadAll(io.LimitReader(f, maxUploadBytes))
			if err != nil {
				http.Error(w, "read answer key", http.StatusBadRequest)
				return
			}
		} else {
			var err error
			raw, err = io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
			if err != nil {
				http.Error(w, "read body", http.StatusBadRequest)
				return
			}
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			http.Error(w, "empty answer key", http.StatusBadRequest)
			return
		}

		ki, err := store.IngestAnswerKey(r.Context(), examID, raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		key := "exams/" + examID + "/key.csv"
		if _, err := bs.Put(r.Context(), key, bytes.NewReader(raw)); err != nil {
			http.Error(w, "store key: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if err := store.SetAnswerKeyBlob(r.Context(), examID, key); err != nil {
			writeErr(w, err)
			return
		}

		log.Info().Str("exam", examID).Int("questions", len(ki.Questions)).Msg("answer key replaced")
		writeJSON(w, http.StatusOK, ki)
	}
}

// GetExamFullHandler returns the exam with correct answers included.
func GetExamFullHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExamFull(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
