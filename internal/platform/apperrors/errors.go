package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrImportPartialFailure = errors.New("import partially failed")
)

// ValidationError names the offending field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigError is returned when a configuration write would break an invariant.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

func InvalidConfig(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// ImportPartialFailure reports how many rows were committed before a batch failed.
type ImportPartialFailure struct {
	Committed int
	Failed    int
	Err       error
}

func (e *ImportPartialFailure) Error() string {
	return fmt.Sprintf("import committed %d rows, %d rows failed: %v", e.Committed, e.Failed, e.Err)
}

func (e *ImportPartialFailure) Unwrap() []error {
	return []error{ErrImportPartialFailure, e.Err}
}

func Unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
