// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/statustrack/internal/auth"
	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/log"
)

// APIError is a stable, client-facing error.
type APIError struct {
	Status  int
	Type    string
	Title   string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

var (
	ErrInvalidStatus = &APIError{
		Status:  http.StatusBadRequest,
		Type:    "status/invalid_status",
		Title:   "Bad Request",
		Code:    "INVALID_STATUS",
		Message: "Invalid status",
	}
	ErrUnauthenticated = &APIError{
		Status:  http.StatusUnauthorized,
		Type:    "auth/unauthenticated",
		Title:   "Unauthorized",
		Code:    "UNAUTHENTICATED",
		Message: "Authentication required",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Type:    "status/not_found",
		Title:   "Not Found",
		Code:    "NOT_FOUND",
		Message: "No active status",
	}
	ErrNoActiveStatus = &APIError{
		Status:  http.StatusBadRequest,
		Type:    "status/no_active_status",
		Title:   "Bad Request",
		Code:    "NO_ACTIVE_STATUS",
		Message: "No active status to stop",
	}
	ErrInvalidInput = &APIError{
		Status:  http.StatusBadRequest,
		Type:    "request/invalid_input",
		Title:   "Bad Request",
		Code:    "INVALID_INPUT",
		Message: "Invalid request",
	}
	ErrStorageFailure = &APIError{
		Status:  http.StatusInternalServerError,
		Type:    "status/storage_failure",
		Title:   "Internal Server Error",
		Code:    "STORAGE_FAILURE",
		Message: "The status store is unavailable",
	}
)

// classify maps a domain error onto its APIError. Unknown errors are treated
// as storage failures so no internals leak.
func classify(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, model.ErrInvalidStatus):
		return ErrInvalidStatus
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, model.ErrMissingUser):
		return ErrUnauthenticated
	case errors.Is(err, model.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, model.ErrNoActiveSession):
		return ErrNoActiveStatus
	case errors.Is(err, model.ErrInvalidRange):
		return ErrInvalidInput
	default:
		return ErrStorageFailure
	}
}

// respondError writes err as a problem document. detail, when non-empty,
// replaces the canned message; storage details are logged, never returned.
func respondError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	apiErr := classify(err)
	if detail == "" {
		detail = apiErr.Message
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Str(log.FieldPath, r.URL.Path).
			Str("code", apiErr.Code).
			Msg("request failed")
		detail = apiErr.Message
	}

	writeProblem(w, r, apiErr.Status, apiErr.Type, apiErr.Title, apiErr.Code, detail)
}
