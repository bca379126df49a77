// Package http provides chi-compatible handlers that return errors, and the
// JSON error envelope those errors are rendered as.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/purgatory-reaper/pkg/app/errors"
)

// HandlerFunc defines a function that returns an error for clean error handling
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	ErrMsg     string `json:"error"`
	ErrMsgCode int    `json:"code"`
}

// HandleError wraps an error-returning HandlerFunc into a standard http.HandlerFunc
// This allows using clean error-returning handlers with any router (chi, http.ServeMux, etc.)
//
// Usage with chi:
//
//	r.Get("/stats", http.HandleError(handler.stats))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler renders err. Only the message of a ServiceError reaches
// the client; anything else is reported as an unexpected error.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		_ = WriteJSON(w, svcErr.StatusCode(), &ErrorResponse{
			ErrMsg:     svcErr.Message,
			ErrMsgCode: svcErr.StatusCode(),
		})
		return
	}

	_ = WriteJSON(w, http.StatusInternalServerError, &ErrorResponse{
		ErrMsg:     "Unexpected Service Error",
		ErrMsgCode: http.StatusInternalServerError,
	})
}

// WriteJSON writes data as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
