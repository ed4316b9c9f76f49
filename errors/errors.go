package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError là custom error type cho application
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or ErrorCode_INTERNAL.
func CodeOf(err error) ErrorCode {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCode_INTERNAL
}

// IsTransient reports whether the error is a transient external-service
// failure that a retry policy may retry.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case ErrorCode_EXTERNAL_TIMEOUT, ErrorCode_EXTERNAL_RATE_LIMITED, ErrorCode_EXTERNAL_UNAVAILABLE:
		return true
	}
	return false
}

// General Errors
func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_NOT_FOUND,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

func ErrAlreadyExists(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_ALREADY_EXISTS,
		Message:  fmt.Sprintf("%s already exists", resource),
	}
}

func ErrUnauthenticated() AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_UNAUTHENTICATED,
		Message:  "Authentication required",
	}
}

// Extraction Errors

// ErrExtractionPartial marks an individual fact dropped during schema
// validation. The rest of the batch continues.
func ErrExtractionPartial(reason string) AppError {
	return AppError{
		HTTPCode: http.StatusUnprocessableEntity,
		Code:     ErrorCode_EXTRACTION_PARTIAL,
		Message:  "Extraction dropped a malformed fact",
	}.WithDetail("reason", reason)
}

// ErrExtractionUnparseable means the collaborator returned no parseable
// structure even after the stricter retry.
func ErrExtractionUnparseable(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusUnprocessableEntity,
		Code:     ErrorCode_EXTRACTION_UNPARSEABLE,
		Message:  "LLM output could not be parsed after retry",
	}
}

// Reconciliation Errors

func ErrReconciliationConflict(ticketKey string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_RECONCILIATION_CONFLICT,
		Message:  "Ticket changed concurrently and could not be re-applied",
	}.WithDetail("ticket_key", ticketKey)
}

func ErrUnresolvedReference(description string) AppError {
	return AppError{
		HTTPCode: http.StatusUnprocessableEntity,
		Code:     ErrorCode_UNRESOLVED_REFERENCE,
		Message:  "No target ticket could be resolved",
	}.WithDetail("description", description)
}

// External Service Errors

func ErrExternalTimeout(service string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusGatewayTimeout,
		Code:     ErrorCode_EXTERNAL_TIMEOUT,
		Message:  fmt.Sprintf("%s timed out", service),
	}.WithDetail("service", service)
}

func ErrExternalRateLimited(service string) AppError {
	return AppError{
		HTTPCode: http.StatusTooManyRequests,
		Code:     ErrorCode_EXTERNAL_RATE_LIMITED,
		Message:  fmt.Sprintf("%s rate limited the request", service),
	}.WithDetail("service", service)
}

func ErrExternalUnavailable(service string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusServiceUnavailable,
		Code:     ErrorCode_EXTERNAL_UNAVAILABLE,
		Message:  fmt.Sprintf("%s is unavailable", service),
	}.WithDetail("service", service)
}

// Validation Errors

func ErrValidationMissingField(field string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_VALIDATION_MISSING_FIELD,
		Message:  "Required field is missing",
	}.WithDetail("field", field)
}

func ErrValidationMalformedShape(kind string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_VALIDATION_MALFORMED_SHAPE,
		Message:  fmt.Sprintf("Payload does not match the %s shape", kind),
	}.WithDetail("kind", kind)
}

// Infrastructure Errors

func ErrDBQueryFailed(query string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_DB_QUERY_FAILED,
		Message:  "Database query failed",
	}.WithDetail("query", query)
}

func ErrStorageFailed(operation string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_STORAGE_FAILED,
		Message:  fmt.Sprintf("Storage operation failed: %s", operation),
	}
}

func ErrLockFailed(ticketKey string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_LOCK_FAILED,
		Message:  "Could not acquire ticket lock",
	}.WithDetail("ticket_key", ticketKey)
}
