package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gatehall/gatehall/internal/answerkey"
	"github.com/gatehall/gatehall/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps store and parse errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var mk *answerkey.MalformedKeyError
	switch {
	case errors.As(err, &mk):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": mk.Error()})
	case errors.Is(err, exam.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, exam.ErrAlreadySubmitted), errors.Is(err, exam.ErrNotSubmitted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
