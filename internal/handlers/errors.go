package handlers

import (
	"errors"
	"net/http"

	"message-functions/internal/repositories"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorStatus maps a service error onto an HTTP status and response body.
// Persistence failures are not described to the caller.
func errorStatus(err error, action string) (int, ErrorResponse) {
	switch {
	case errors.Is(err, repositories.ErrValidation), errors.Is(err, repositories.ErrInvalidID):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		}
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   action,
			Message: "An internal error occurred",
		}
	}
}
