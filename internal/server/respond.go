package server

import (
	"encoding/json"
	"errors"
	"net/http"

	tderrors "github.com/tripdraw/tripdraw/pkg/errors"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes v as indented JSON with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Errorf("encode response: %v", err)
	}
}

// respondError maps an error to an HTTP status and writes the JSON
// error body. Unknown errors become 500s with their message hidden so
// store internals never leak to clients.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := tderrors.GetCode(err)
	if code == "" {
		switch {
		case errors.Is(err, store.ErrNotFound):
			code = tderrors.ErrCodeNotFound
		case errors.Is(err, store.ErrDuplicate):
			code = tderrors.ErrCodeConflict
		default:
			code = tderrors.ErrCodeInternal
		}
	}

	message := tderrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Errorf("request failed: %v", err)
		message = "internal error"
	}

	s.respondJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(code),
		Message: message,
	}})
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, store.ErrDuplicate) {
		return http.StatusConflict
	}
	switch tderrors.GetCode(err) {
	case tderrors.ErrCodeSelfSeparation:
		return http.StatusUnprocessableEntity
	case tderrors.ErrCodeInvalidInput, tderrors.ErrCodeInvalidTrip,
		tderrors.ErrCodeInvalidParticipant, tderrors.ErrCodeInvalidRoster:
		return http.StatusBadRequest
	case tderrors.ErrCodeNotFound, tderrors.ErrCodeTripNotFound,
		tderrors.ErrCodeParticipantNotFound, tderrors.ErrCodeRunNotFound:
		return http.StatusNotFound
	case tderrors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
