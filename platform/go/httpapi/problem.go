// Package httpapi carries the small HTTP plumbing shared by all domain
// handlers: RFC 7807 problem responses and JSON encoding/decoding.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	ProblemTypeValidation = "https://novalearn.io/problems/validation-error"
	ProblemTypeNotFound   = "https://novalearn.io/problems/not-found"
	ProblemTypeConflict   = "https://novalearn.io/problems/conflict"
	ProblemTypeForbidden  = "https://novalearn.io/problems/forbidden"
	ProblemTypeInternal   = "https://novalearn.io/problems/internal-error"
)

// ProblemDetails is the error body every endpoint returns on failure.
type ProblemDetails struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// WriteProblem renders a problem response with the matching content type.
func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteJSON renders v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON parses the request body into dst, rejecting unknown fields and
// trailing garbage.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
