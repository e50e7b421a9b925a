package errors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeUserNotFound = "USER_NOT_FOUND"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeExternalAPI  = "EXTERNAL_API"
	ErrCodeDatabase     = "DATABASE"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// AppError represents an application error with an error code and HTTP status
type AppError struct {
	Code    string // Error code (e.g., "USER_NOT_FOUND", "RATE_LIMITED")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewUserNotFoundError reports an invalid platform username. Terminal:
// retrying cannot succeed until the configuration changes.
func NewUserNotFoundError(source, username string) *AppError {
	return &AppError{
		Code:    ErrCodeUserNotFound,
		Message: fmt.Sprintf("user %q does not exist on %s", username, source),
		Status:  404,
	}
}

// NewRateLimitedError reports platform throttling. Retryable after backoff.
func NewRateLimitedError(source string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: fmt.Sprintf("%s is rate limiting requests", source),
		Status:  429,
	}
}

// NewExternalAPIError reports a generic upstream failure.
func NewExternalAPIError(source string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeExternalAPI,
		Message: fmt.Sprintf("%s request failed", source),
		Status:  502,
		Err:     err,
	}
}

// NewDatabaseError reports a persistence failure, typically fatal to
// the calling operation.
func NewDatabaseError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeDatabase,
		Message: "persistence operation failed",
		Status:  500,
		Err:     err,
	}
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsUserNotFound reports whether err is a terminal bad-username error.
func IsUserNotFound(err error) bool { return hasCode(err, ErrCodeUserNotFound) }

// IsRateLimited reports whether err is a retryable throttling error.
func IsRateLimited(err error) bool { return hasCode(err, ErrCodeRateLimited) }

// IsExternalAPI reports whether err is a generic upstream failure.
func IsExternalAPI(err error) bool { return hasCode(err, ErrCodeExternalAPI) }

// IsNotFound reports whether err refers to a missing local resource.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }
