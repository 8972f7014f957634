package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kpitracker/internal/platform/apperrors"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// Partial reports a bulk import that committed some rows before failing.
func Partial(w http.ResponseWriter, data any, err error, requestID string) {
	WriteJSON(w, http.StatusMultiStatus, Envelope{
		Success:   false,
		Data:      data,
		Error:     &Error{Code: "import_partial_failure", Message: err.Error()},
		RequestID: requestID,
	})
}

// FailFromError maps a domain error onto a status code and error code.
func FailFromError(w http.ResponseWriter, err error, requestID string) {
	status, body := Classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "err", err, "requestId", requestID)
	}
	WriteJSON(w, status, Envelope{Success: false, Error: &body, RequestID: requestID})
}

func Classify(err error) (int, Error) {
	var validation *apperrors.ValidationError
	var config *apperrors.ConfigError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, Error{Code: "validation_error", Message: validation.Reason, Field: validation.Field}
	case errors.As(err, &config):
		return http.StatusUnprocessableEntity, Error{Code: "invalid_configuration", Message: config.Reason, Field: config.Field}
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, Error{Code: "validation_error", Message: err.Error()}
	case errors.Is(err, apperrors.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity, Error{Code: "invalid_configuration", Message: err.Error()}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, Error{Code: "not_found", Message: err.Error()}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, Error{Code: "unauthorized", Message: err.Error()}
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, Error{Code: "storage_unavailable", Message: "storage is unavailable"}
	default:
		return http.StatusInternalServerError, Error{Code: "internal_error", Message: "internal server error"}
	}
}
