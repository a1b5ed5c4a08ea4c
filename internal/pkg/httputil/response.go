package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code. If encoding
// fails the status has already been sent, so the failure is only logged.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("[httputil] JSON encode error", "error", err.Error())
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_argument"})
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found"})
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, message string) {
	JSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "conflict"})
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("[httputil] internal error", "error", err.Error())
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"})
}

// FromError maps a service error onto the response: domain.ErrNotFound is
// 404, domain.ErrInvalidArgument 400, domain.ErrConflict 409, anything else
// 500.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrConflict):
		Conflict(w, err.Error())
	default:
		InternalError(w, err)
	}
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
