// Package shared centralizes domain error translation to HTTP responses so
// every handler returns the same JSON error envelope.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "platecheck/pkg/domain-errors"
	"platecheck/pkg/platform/sentinel"
)

// WriteError maps an error to its HTTP status and writes the envelope.
// Sentinel infrastructure facts and coded domain errors each carry their own
// mapping; anything else is an internal error.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)

	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		status = dErrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
		code = string(dErrors.CodeNotFound)
	case errors.Is(err, sentinel.ErrInvalidState):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, sentinel.ErrUnavailable):
		status = http.StatusServiceUnavailable
		code = string(dErrors.CodeUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": code,
	})
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
