package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rom8726/signoff"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func WriteErrorResponse(writer http.ResponseWriter, err error, statusCode int) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)

	resp := ErrorResponse{Message: err.Error()}
	_ = json.NewEncoder(writer).Encode(resp)
}

// WriteError maps the engine's error taxonomy onto HTTP status codes.
func WriteError(writer http.ResponseWriter, err error) {
	WriteErrorResponse(writer, err, statusForError(err))
}

func statusForError(err error) int {
	var (
		validationErr *signoff.ValidationError
		authErr       *signoff.AuthorizationError
		notFoundErr   *signoff.NotFoundError
		conflictErr   *signoff.ConflictError
		stateErr      *signoff.StateError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr), errors.As(err, &stateErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
