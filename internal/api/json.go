package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"vaxalloc/internal/opt"
	"vaxalloc/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// badRequestError marks problem-assembly failures caused by the caller.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// writeSolveError maps domain errors to problem responses.
func writeSolveError(w http.ResponseWriter, err error, instance string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		writeProblem(w, http.StatusBadRequest, "Invalid request", bad.msg, instance)
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Series not found", "upload an epidemic series first", instance)
	case errors.Is(err, opt.ErrInvalidTiming):
		writeProblem(w, http.StatusBadRequest, "Invalid timing", err.Error(), instance)
	case errors.Is(err, opt.ErrNotOptimal):
		writeProblem(w, http.StatusUnprocessableEntity, "No optimal solution", err.Error(), instance)
	default:
		writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), instance)
	}
}
